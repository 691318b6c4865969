package engagement

// Predict computes the state a vote request will most likely produce, using
// the same transitions as the ledger. It never returns negative counters.
func Predict(prior State, requested VoteType) State {
	next := prior

	switch prior.UserVote {
	case VoteUp:
		next.Upvotes = decrement(next.Upvotes)
	case VoteDown:
		next.Downvotes = decrement(next.Downvotes)
	}

	if requested == prior.UserVote {
		next.UserVote = VoteNone
		return next
	}

	switch requested {
	case VoteUp:
		next.Upvotes++
	case VoteDown:
		next.Downvotes++
	}
	next.UserVote = requested
	return next
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
