package analysis

import "errors"

// ErrRateLimited indicates the LLM provider rejected a call for rate or
// quota reasons (HTTP 429 or similar). Recovery pauses are longer than the
// standard inter-call cool-down.
var ErrRateLimited = errors.New("llm rate limited")

// ErrEmptyInput indicates extraction produced no usable text; the job
// fails before any LLM call is issued.
var ErrEmptyInput = errors.New("empty extracted text")
