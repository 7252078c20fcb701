package constant

const (
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleTool      = "tool"
)

const (
	// AuthorizationErrorPrefix marks hard authorization failures in user-facing
	// answers. The turn is aborted when an answer carries this prefix.
	AuthorizationErrorPrefix = "⛔ Yetki hatası: "

	// TruncationNotice is appended when the tool-calling loop hits its
	// iteration cap or the per-turn deadline before a final answer.
	TruncationNotice = "⚠️ _Yanıt tamamlanamadan kesildi. Lütfen sorunuzu daha net bir şekilde tekrar sorun._"

	// ApologyAnswer is returned when the model fails after partial progress.
	ApologyAnswer = "Üzgünüm, şu anda yanıt veremiyorum. Lütfen daha sonra tekrar deneyin."
)

// DefaultShippingExampleAmount is used by the shipping rule when the message
// carries no order amount; the result is annotated as illustrative.
const DefaultShippingExampleAmount = 500.0
