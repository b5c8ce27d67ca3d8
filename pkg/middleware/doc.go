// Package middleware provides reusable rxstore middlewares: reactions that map
// actions to follow-up actions, discriminant filtering, composition and logging.
package middleware
