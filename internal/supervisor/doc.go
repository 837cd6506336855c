// Package supervisor is the application-side owner of a workout session.
//
// The supervisor keeps a cached projection of elapsed time that it learns
// from timing authority events, checkpoints the session through a
// Repository, and rehydrates it on startup. It never computes timing truth
// itself except as a degraded fallback while the authority is silent.
package supervisor
