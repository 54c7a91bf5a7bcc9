// Package synth turns mined history into a cited answer.
//
// Synthesizer is the collaborator interface used by the archaeology
// provider. Two implementations ship with the module:
//
//   - Extractive ranks commits by term overlap with the question and
//     quotes the best match. It needs no network access.
//   - Gemini ranks the same way, then asks a Gemini model to write the
//     answer from the top commits. It falls back to the extractive answer
//     when the model call fails.
//
// Candidate SHAs, when supplied, come from semantic narrowing and boost the
// matching commits. They never exclude other commits.
package synth
