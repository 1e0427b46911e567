package reward

import "errors"

// ErrNonFinite reports a NaN or infinite reward term. It indicates broken
// simulation input and must not be fed to a learner.
var ErrNonFinite = errors.New("non-finite reward")
