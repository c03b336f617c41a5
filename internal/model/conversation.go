// Package model provides data models for the faqbot service.
package model

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks a turn written by the bot.
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChunkMatch represents a retrieved chunk with its similarity score.
type ChunkMatch struct {
	// Position is the chunk ordinal within its business's chunk sequence.
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// QueryResult represents a full RAG query result.
type QueryResult struct {
	Answer  string       `json:"answer"`
	Context string       `json:"context,omitempty"`
	Matches []ChunkMatch `json:"matches,omitempty"`
}

// QueryType distinguishes how an inbound message arrived.
type QueryType string

const (
	QueryTypeText  QueryType = "text"
	QueryTypeVoice QueryType = "voice"
)

// ConversationRecord is one logged webhook exchange, stored for analytics.
type ConversationRecord struct {
	ID            string    `json:"id" bson:"_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	BusinessID    string    `json:"business_id" bson:"business_id"`
	Query         string    `json:"query" bson:"query"`
	QueryType     QueryType `json:"query_type" bson:"query_type"`
	Transcription string    `json:"transcription,omitempty" bson:"transcription,omitempty"`
	Answer        string    `json:"answer" bson:"answer"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
}

// Analytics summarizes logged conversations for one business.
type Analytics struct {
	BusinessID     string               `json:"business_id"`
	TotalQueries   int64                `json:"total_queries"`
	VoiceQueries   int64                `json:"voice_queries"`
	UniqueUsers    int64                `json:"unique_users"`
	RecentActivity []ConversationRecord `json:"recent_activity"`
}
