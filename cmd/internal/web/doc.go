// Package web holds the HTTP plumbing shared by the API handlers: JSON
// encoding, the errorsMessages error body, request validation, auth guards
// and client IP resolution.
package web
