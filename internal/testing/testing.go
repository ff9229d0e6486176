// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/playdeploy/internal/services"
)

// Call records a single invocation made against a [MockPublisher].
type Call struct {
	Method      string
	EditID      string
	PackageName string
	Assignment  *services.TrackAssignment
	VersionCode int64
	Path        string
	Track       string
	Expansion   string
}

func (c Call) String() string {
	if c.EditID == "" {
		return fmt.Sprintf("%s(%s)", c.Method, c.PackageName)
	}
	return fmt.Sprintf("%s(%s, %s)", c.Method, c.EditID, c.PackageName)
}

// MockPublisher is a test double for [services.Publisher].
//
// Every call succeeds unless the matching *Err field is set, in which case it fails with that message.
type MockPublisher struct {
	EditID      string
	VersionCode int64
	Tracks      []services.TrackState // returned by ListTracks

	OpenErr       string
	UploadErr     string
	ExpansionErr  string
	MappingErr    string
	SymbolsErr    string
	AssignErr     string
	ListTracksErr string
	ClearErr      string
	ValidateErr   string
	CommitErr     string
	DeleteErr     string

	mu    sync.Mutex
	calls []Call
}

// NewMockPublisher returns a publisher that opens edit editID and assigns versionCode to uploads.
func NewMockPublisher(editID string, versionCode int64) *MockPublisher {
	return &MockPublisher{EditID: editID, VersionCode: versionCode}
}

func (m *MockPublisher) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of the recorded calls in order.
func (m *MockPublisher) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Methods returns the names of the recorded calls in order.
func (m *MockPublisher) Methods() []string {
	calls := m.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Count returns how many times method was called.
func (m *MockPublisher) Count(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockPublisher) OpenEdit(ctx context.Context, packageName string) services.Outcome[services.Edit] {
	m.record(Call{Method: "OpenEdit", PackageName: packageName})
	if m.OpenErr != "" {
		return services.Failure[services.Edit]("%s", m.OpenErr)
	}
	return services.Success(services.Edit{ID: m.EditID, PackageName: packageName, Status: services.EditOpen})
}

func (m *MockPublisher) UploadBinary(ctx context.Context, editID, packageName, path string) services.Outcome[services.UploadResult] {
	m.record(Call{Method: "UploadBinary", EditID: editID, PackageName: packageName, Path: path})
	if m.UploadErr != "" {
		return services.Failure[services.UploadResult]("%s", m.UploadErr)
	}
	return services.Success(services.UploadResult{
		VersionCode: m.VersionCode,
		Edit:        services.Edit{ID: editID, PackageName: packageName, Status: services.EditOpen},
	})
}

func (m *MockPublisher) UploadMapping(ctx context.Context, editID, packageName string, versionCode int64, path string) services.Outcome[services.Unit] {
	m.record(Call{Method: "UploadMapping", EditID: editID, PackageName: packageName, VersionCode: versionCode, Path: path})
	return m.unit(m.MappingErr)
}

func (m *MockPublisher) UploadNativeSymbols(ctx context.Context, editID, packageName string, versionCode int64, path string) services.Outcome[services.Unit] {
	m.record(Call{Method: "UploadNativeSymbols", EditID: editID, PackageName: packageName, VersionCode: versionCode, Path: path})
	return m.unit(m.SymbolsErr)
}

func (m *MockPublisher) UploadExpansionFile(ctx context.Context, editID, packageName string, versionCode int64, file services.ExpansionFile) services.Outcome[services.Unit] {
	m.record(Call{Method: "UploadExpansionFile", EditID: editID, PackageName: packageName, VersionCode: versionCode, Path: file.Path, Expansion: file.Kind})
	return m.unit(m.ExpansionErr)
}

func (m *MockPublisher) ListTracks(ctx context.Context, editID, packageName string) services.Outcome[[]services.TrackState] {
	m.record(Call{Method: "ListTracks", EditID: editID, PackageName: packageName})
	if m.ListTracksErr != "" {
		return services.Failure[[]services.TrackState]("%s", m.ListTracksErr)
	}
	return services.Success(m.Tracks)
}

func (m *MockPublisher) ClearTrack(ctx context.Context, editID, packageName, track string) services.Outcome[services.Unit] {
	m.record(Call{Method: "ClearTrack", EditID: editID, PackageName: packageName, Track: track})
	return m.unit(m.ClearErr)
}

func (m *MockPublisher) AssignTrack(ctx context.Context, editID, packageName string, assignment services.TrackAssignment) services.Outcome[services.Unit] {
	m.record(Call{Method: "AssignTrack", EditID: editID, PackageName: packageName, Assignment: &assignment})
	return m.unit(m.AssignErr)
}

func (m *MockPublisher) ValidateEdit(ctx context.Context, editID, packageName string) services.Outcome[services.Unit] {
	m.record(Call{Method: "ValidateEdit", EditID: editID, PackageName: packageName})
	return m.unit(m.ValidateErr)
}

func (m *MockPublisher) CommitEdit(ctx context.Context, editID, packageName string) services.Outcome[services.Unit] {
	m.record(Call{Method: "CommitEdit", EditID: editID, PackageName: packageName})
	return m.unit(m.CommitErr)
}

func (m *MockPublisher) DeleteEdit(ctx context.Context, editID, packageName string) services.Outcome[services.Unit] {
	m.record(Call{Method: "DeleteEdit", EditID: editID, PackageName: packageName})
	return m.unit(m.DeleteErr)
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) unit(msg string) services.Outcome[services.Unit] {
	if msg != "" {
		return services.Failure[services.Unit]("%s", msg)
	}
	return services.Success(services.Unit{})
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustWriteFile writes content to name inside dir and returns the full path.
func MustWriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
