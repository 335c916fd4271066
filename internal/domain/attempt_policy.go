package domain

// DefaultMaxAttempts is the attempt limit per (leader, question) pair.
const DefaultMaxAttempts = 3

// CheckAttempt decides whether another attempt may be submitted after prior,
// the existing attempts for one (leader, question) pair. Only a rejected
// latest attempt opens the pair again. It returns nil when the attempt is
// allowed, otherwise an error wrapping ErrPolicyViolation.
func CheckAttempt(prior []Answer, maxAttempts int) error {
	if maxAttempts <= 0 || len(prior) >= maxAttempts {
		return ErrAttemptLimitReached
	}
	if len(prior) == 0 {
		return nil
	}

	latest := prior[0]
	for _, a := range prior[1:] {
		if a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	switch {
	case latest.Status == StatusApproved:
		return ErrAlreadyApproved
	case latest.Status.IsPending():
		return ErrAttemptPending
	case latest.Status != StatusRejected:
		return ErrAttemptNotRejected
	}
	return nil
}

// CanAttempt is CheckAttempt as a predicate.
func CanAttempt(prior []Answer, maxAttempts int) bool {
	return CheckAttempt(prior, maxAttempts) == nil
}

// NextAttemptNumber numbers a new attempt after prior. Numbers continue past
// the highest existing one so they never repeat, even after a deletion.
func NextAttemptNumber(prior []Answer) int {
	next := 1
	for _, a := range prior {
		if a.AttemptNumber >= next {
			next = a.AttemptNumber + 1
		}
	}
	return next
}
