package mining

import (
	"fmt"
	"time"
)

// Chat copy for session lifecycle events.

func startedMessage(d time.Duration) string {
	return fmt.Sprintf("⛏️ Your mining session has begun! You'll be mining for %s. ⏳", d)
}

func alreadyMiningMessage() string {
	return "You are already mining! Please wait until your current session ends."
}

func completedMessage(reward, total int64) string {
	return fmt.Sprintf(
		"Your mining session has ended! You have earned %d tokens.\n"+
			"💰 Your total balance is now %d tokens.\n"+
			"Send /mine to continue mining ⛏️",
		reward, total,
	)
}
