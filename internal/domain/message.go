package domain

import "time"

// Message is a single chat row in a support conversation.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`

	SenderID   ProfileID `json:"senderId"`
	SenderRole Role      `json:"senderRole"`

	Body string `json:"body"`
	// ClientRef is the optimistic placeholder id chosen by the sending client, echoed back
	// so the client can swap its placeholder for the persisted row.
	ClientRef *string `json:"clientRef,omitempty"`

	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ConversationSummary is the admin inbox view of a conversation.
type ConversationSummary struct {
	ConversationID ConversationID `json:"conversationId"`
	Owner          ProfileSummary `json:"owner"`
	LastMessage    *Message       `json:"lastMessage,omitempty"`
	UnreadCount    int            `json:"unreadCount"`
}

// ProfileSummary is the subset of a profile safe to show to other users.
type ProfileSummary struct {
	ID          ProfileID `json:"id"`
	Role        Role      `json:"role"`
	FullName    string    `json:"fullName"`
	CompanyName *string   `json:"companyName,omitempty"`
}
