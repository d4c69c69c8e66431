package server

import (
	"fmt"
	"time"
)

const baseInstruction = "You are the spirit of Samantha, a helpful personal assistant built by Hetaro Labs, a company that specializes in AI and blockchain technologies."

// BuildSystemInstruction assembles the per-user system instruction: the
// assistant persona, the user's profile, and the current time.
func BuildSystemInstruction(firstName, lastName string, now time.Time) string {
	userProfileText := fmt.Sprintf(
		"\nYou are talking with a user their first name is %s and last name is %s, remember, this is not necessarily the same as the user's real name.\n",
		firstName, lastName,
	)
	currentTimeText := fmt.Sprintf("\nThe current time is %s\n", now.Format(time.RFC3339))

	return baseInstruction + userProfileText + currentTimeText
}
