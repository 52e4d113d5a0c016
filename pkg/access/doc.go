// Package access defines the error taxonomy shared by every access control
// component. Each failure carries a Kind that is stable across releases so the
// UI layer can branch on it:
//
//	if errors.Is(err, access.ErrLastAdmin) {
//		// prompt the caller to promote another admin first
//	}
//
// Storage failures never surface as authorization errors; they are reported as
// KindBusy (retryable lock contention) or KindUnavailable.
package access
