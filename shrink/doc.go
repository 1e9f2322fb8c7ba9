// Package shrink probes image payloads and drives them under a byte budget.
//
// Compressor is a bounded state machine: it probes the input, and while the
// payload exceeds the budget and passes remain, derives a new image from the
// previous one through a Transform and probes again. The loop always terminates
// after at most maxIterations passes; an image that never fits is returned as-is
// with WithinBudget false. Budgets are compared as byte counts.
package shrink
