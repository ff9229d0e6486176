// Package models defines persistent entities and the repository interface for playdeploy.
//
// The only entity is [PublishRun], one row of the local audit log written after every publish attempt.
// It implements [Model], which provides ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
