package domain

import "time"

// ChatRole identifies who wrote a transcript line.
type ChatRole string

const (
	ChatRoleDealer ChatRole = "dealer"
	ChatRoleUser   ChatRole = "user"
)

// WelcomeMessage opens every new transcript.
const WelcomeMessage = "Chào mừng quý khách đến với Royal Tai Xiu. Chúc quý khách một ngày đại thắng!"

// ChatMessage is one line of the dealer transcript.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
