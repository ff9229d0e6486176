// Google Play Developer API [Publisher] implementation
//
// Calls go through the generated androidpublisher/v3 client; see
// https://developers.google.com/android-publisher/api-ref/rest/v3/edits
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/desertthunder/playdeploy/internal/shared"
	"golang.org/x/time/rate"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultPlayBaseURL = "https://androidpublisher.googleapis.com/"

	contentTypeAPK    = "application/vnd.android.package-archive"
	contentTypeBinary = "application/octet-stream"

	deobfuscationProguard   = "proguard"
	deobfuscationNativeCode = "nativeCode"
)

// PlayStoreOpts configures a [PlayStoreService].
type PlayStoreOpts struct {
	BaseURL           string       // API root, defaults to https://androidpublisher.googleapis.com/
	HTTPClient        *http.Client // should carry the bearer token (see auth.Provider.Client)
	RequestsPerSecond float64      // client-side pacing; <= 0 disables it
}

// PlayStoreService implements [Publisher] against the Google Play Developer API v3.
type PlayStoreService struct {
	edits   *androidpublisher.EditsService
	baseURL string
	limiter *rate.Limiter
}

// NewPlayStoreService creates a new Google Play publisher.
//
// Requests are sent through a copy of opts.HTTPClient whose transport waits on the rate limiter first.
func NewPlayStoreService(ctx context.Context, opts PlayStoreOpts) (*PlayStoreService, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultPlayBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	client := *opts.HTTPClient
	client.Transport = &pacedTransport{base: opts.HTTPClient.Transport, limiter: limiter}

	svc, err := androidpublisher.NewService(ctx,
		option.WithHTTPClient(&client),
		option.WithEndpoint(opts.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Google Play client: %v", shared.ErrServiceUnavailable, err)
	}

	return &PlayStoreService{
		edits:   svc.Edits,
		baseURL: opts.BaseURL,
		limiter: limiter,
	}, nil
}

// Name returns the service name.
func (p *PlayStoreService) Name() string {
	return "Google Play"
}

// OpenEdit calls edits.insert.
func (p *PlayStoreService) OpenEdit(ctx context.Context, packageName string) Outcome[Edit] {
	edit, err := p.edits.Insert(packageName, &androidpublisher.AppEdit{}).Context(ctx).Do()
	if err != nil {
		return Failure[Edit]("%s", failureMessage(err))
	}

	if edit.Id == "" {
		return Failure[Edit]("malformed response: edit id missing")
	}

	return Success(Edit{
		ID:          edit.Id,
		PackageName: packageName,
		Status:      EditOpen,
		ExpiresAt:   edit.ExpiryTimeSeconds,
	})
}

// UploadBinary uploads an APK (edits.apks.upload) or AAB (edits.bundles.upload) depending on the file extension.
func (p *PlayStoreService) UploadBinary(ctx context.Context, editID, packageName, path string) Outcome[UploadResult] {
	kind := shared.DetectBinaryKind(path)
	if kind == shared.BinaryUnknown {
		return Failure[UploadResult]("unsupported binary %s: expected .apk or .aab", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Failure[UploadResult]("failed to open binary: %v", err)
	}
	defer f.Close()

	var versionCode int64
	var sha string
	switch kind {
	case shared.BinaryAPK:
		apk, err := p.edits.Apks.Upload(packageName, editID).
			Media(f, googleapi.ContentType(contentTypeAPK)).
			Context(ctx).
			Do()
		if err != nil {
			return Failure[UploadResult]("%s", failureMessage(err))
		}
		versionCode = apk.VersionCode
		if apk.Binary != nil {
			sha = apk.Binary.Sha256
		}
	case shared.BinaryAAB:
		bundle, err := p.edits.Bundles.Upload(packageName, editID).
			Media(f, googleapi.ContentType(contentTypeBinary)).
			Context(ctx).
			Do()
		if err != nil {
			return Failure[UploadResult]("%s", failureMessage(err))
		}
		versionCode, sha = bundle.VersionCode, bundle.Sha256
	}

	if versionCode <= 0 {
		return Failure[UploadResult]("malformed response: version code missing")
	}

	return Success(UploadResult{
		VersionCode: versionCode,
		SHA256:      sha,
		Edit:        Edit{ID: editID, PackageName: packageName, Status: EditOpen},
	})
}

// UploadMapping calls edits.deobfuscationfiles.upload with the proguard file type.
func (p *PlayStoreService) UploadMapping(ctx context.Context, editID, packageName string, versionCode int64, path string) Outcome[Unit] {
	return p.uploadDeobfuscation(ctx, editID, packageName, versionCode, deobfuscationProguard, path)
}

// UploadNativeSymbols calls edits.deobfuscationfiles.upload with the nativeCode file type.
func (p *PlayStoreService) UploadNativeSymbols(ctx context.Context, editID, packageName string, versionCode int64, path string) Outcome[Unit] {
	return p.uploadDeobfuscation(ctx, editID, packageName, versionCode, deobfuscationNativeCode, path)
}

func (p *PlayStoreService) uploadDeobfuscation(ctx context.Context, editID, packageName string, versionCode int64, fileType, path string) Outcome[Unit] {
	f, err := os.Open(path)
	if err != nil {
		return Failure[Unit]("failed to open %s file: %v", fileType, err)
	}
	defer f.Close()

	_, err = p.edits.Deobfuscationfiles.Upload(packageName, editID, versionCode, fileType).
		Media(f, googleapi.ContentType(contentTypeBinary)).
		Context(ctx).
		Do()
	if err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// UploadExpansionFile calls edits.expansionfiles.upload.
func (p *PlayStoreService) UploadExpansionFile(ctx context.Context, editID, packageName string, versionCode int64, file ExpansionFile) Outcome[Unit] {
	f, err := os.Open(file.Path)
	if err != nil {
		return Failure[Unit]("failed to open expansion file: %v", err)
	}
	defer f.Close()

	_, err = p.edits.Expansionfiles.Upload(packageName, editID, versionCode, file.Kind).
		Media(f, googleapi.ContentType(contentTypeBinary)).
		Context(ctx).
		Do()
	if err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// AssignTrack calls edits.tracks.update with a single release.
func (p *PlayStoreService) AssignTrack(ctx context.Context, editID, packageName string, assignment TrackAssignment) Outcome[Unit] {
	if len(assignment.VersionCodes) == 0 {
		return Failure[Unit]("no version codes to assign")
	}

	release := &androidpublisher.TrackRelease{
		VersionCodes: googleapi.Int64s(assignment.VersionCodes),
		Status:       assignment.ReleaseStatus(),
		ReleaseNotes: localizedNotes(assignment.ReleaseNotes),
	}
	if AppliesUserFraction(release.Status) && assignment.UserFraction < 1 {
		release.UserFraction = assignment.UserFraction
	}

	track := &androidpublisher.Track{Track: assignment.Track, Releases: []*androidpublisher.TrackRelease{release}}
	if _, err := p.edits.Tracks.Update(packageName, editID, assignment.Track, track).Context(ctx).Do(); err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}

	return Success(Unit{})
}

// ListTracks calls edits.tracks.list.
func (p *PlayStoreService) ListTracks(ctx context.Context, editID, packageName string) Outcome[[]TrackState] {
	resp, err := p.edits.Tracks.List(packageName, editID).Context(ctx).Do()
	if err != nil {
		return Failure[[]TrackState]("%s", failureMessage(err))
	}

	tracks := make([]TrackState, 0, len(resp.Tracks))
	for _, t := range resp.Tracks {
		state := TrackState{Name: t.Track}
		for _, r := range t.Releases {
			state.VersionCodes = append(state.VersionCodes, r.VersionCodes...)
		}
		tracks = append(tracks, state)
	}
	return Success(tracks)
}

// ClearTrack calls edits.tracks.update with an empty release list.
func (p *PlayStoreService) ClearTrack(ctx context.Context, editID, packageName, track string) Outcome[Unit] {
	empty := &androidpublisher.Track{
		Track:           track,
		Releases:        []*androidpublisher.TrackRelease{},
		ForceSendFields: []string{"Releases"},
	}
	if _, err := p.edits.Tracks.Update(packageName, editID, track, empty).Context(ctx).Do(); err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// ValidateEdit calls edits.validate.
func (p *PlayStoreService) ValidateEdit(ctx context.Context, editID, packageName string) Outcome[Unit] {
	if _, err := p.edits.Validate(packageName, editID).Context(ctx).Do(); err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// CommitEdit calls edits.commit.
func (p *PlayStoreService) CommitEdit(ctx context.Context, editID, packageName string) Outcome[Unit] {
	if _, err := p.edits.Commit(packageName, editID).Context(ctx).Do(); err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// DeleteEdit calls edits.delete.
func (p *PlayStoreService) DeleteEdit(ctx context.Context, editID, packageName string) Outcome[Unit] {
	if err := p.edits.Delete(packageName, editID).Context(ctx).Do(); err != nil {
		return Failure[Unit]("%s", failureMessage(err))
	}
	return Success(Unit{})
}

// pacedTransport waits on the limiter before every request.
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("request not sent: %w", err)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// localizedNotes converts a language → text map into the API's ordered list.
func localizedNotes(notes map[string]string) []*androidpublisher.LocalizedText {
	if len(notes) == 0 {
		return nil
	}

	languages := make([]string, 0, len(notes))
	for lang := range notes {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	out := make([]*androidpublisher.LocalizedText, 0, len(languages))
	for _, lang := range languages {
		out = append(out, &androidpublisher.LocalizedText{Language: lang, Text: notes[lang]})
	}
	return out
}

// failureMessage extracts the most useful human-readable message from a call error.
//
// Google API errors carry the server's message. Undecodable bodies are reported as malformed responses and
// everything else as a failed request.
func failureMessage(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if body := strings.TrimSpace(apiErr.Body); body != "" {
			return fmt.Sprintf("status %d: %s", apiErr.Code, body)
		}
		return fmt.Sprintf("status %d", apiErr.Code)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "malformed response: empty body"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Sprintf("malformed response: %v", err)
	}
	return fmt.Sprintf("%v: %v", shared.ErrAPIRequest, err)
}
