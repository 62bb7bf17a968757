package duel

// DetermineWinner picks exactly one winner, applied uniformly at natural
// completion and at timeout:
//
//  1. both completed: earlier completion wins, higher score breaks a
//     timestamp tie
//  2. exactly one completed: that participant
//  3. neither completed: higher score
//
// Remaining ties go to participant 1.
func DetermineWinner(p1, p2 *Participant) string {
	switch {
	case p1.Completed() && p2.Completed():
		if p1.CompletedAt.Before(p2.CompletedAt) {
			return p1.UserID
		}
		if p2.CompletedAt.Before(p1.CompletedAt) {
			return p2.UserID
		}
		if p1.FinalScore >= p2.FinalScore {
			return p1.UserID
		}
		return p2.UserID

	case p1.Completed():
		return p1.UserID

	case p2.Completed():
		return p2.UserID

	default:
		if p1.FinalScore >= p2.FinalScore {
			return p1.UserID
		}
		return p2.UserID
	}
}
