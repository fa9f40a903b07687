// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Errors raised by the pipeline carry the operation, the resource involved
// and suggestions; catalog entries add Markdown guidance rendered with glamour.
package issue
