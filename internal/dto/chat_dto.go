package dto

import "time"

type ChatRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required"`

	// Role and AllowedProductIds are the body fallback for callers without a
	// token. A JWT identity always wins over these.
	Role              string `json:"role,omitempty"`
	AllowedProductIds []int  `json:"allowed_product_ids,omitempty"`
}

type ChatResponse struct {
	SessionId    string   `json:"session_id"`
	Answer       string   `json:"answer"`
	UsedTools    []string `json:"used_tools"`
	Success      bool     `json:"success"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type ChatHistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	SessionId string               `json:"session_id"`
	Messages  []ChatHistoryMessage `json:"messages"`
}
