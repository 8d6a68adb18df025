package webhook

import "fmt"

// Chat copy for command replies not tied to a session transition.

func welcomeMessage() string {
	return "🌟 Welcome to Kubot! 🌟\n" +
		"Kubot combines cryptocurrency gamification with task-based rewards.\n" +
		"Send /mine to start a mining session ⛏️"
}

func goodbyeMessage() string {
	return "Always remember that Kubot is here to assist you. Have a great day!"
}

func balanceMessage(total int64) string {
	if total == 0 {
		return "💰 You have 0 tokens currently.\nSend /mine to start mining ⛏️"
	}
	return fmt.Sprintf("💰 Your total balance is %d tokens.\nSend /mine to continue mining ⛏️", total)
}
