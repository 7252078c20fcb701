package prompt

import (
	"ai-chatbot-be/pkg/toolctx"
)

// BuildSystem assembles the system prompt for a turn: assistant persona, the
// retrieved knowledge block, the caller's identity and the answer rules.
func BuildSystem(identity *toolctx.Context, ragContext string) string {
	knowledge := ragContext
	if knowledge == "" {
		knowledge = "Bilgi yok."
	}

	subjectId := "anonim"
	role := "Misafir"
	if identity != nil && !identity.IsAnonymous() {
		subjectId = identity.SubjectId
		role = identity.Role
	}

	return `
Sen bir müşteri hizmetleri asistanısın. Kullanıcı sorularına aşağıdaki kuralları uygulayarak cevap ver:

📚 **BİLGİ BANKASI:**
` + knowledge + `

👤 **KULLANICI:**
- UserID: ` + subjectId + `
- Role: ` + role + `

📝 **KURALLAR:**
- Türkçe cevap ver
- Kısa ve öz ol
- Emoji kullan (📦 💰 ✅ ❌)
- Fiyatları 'TL' ile göster
- Bilgi bankasındaki bilgileri kullan
- Bilgi yoksa 'Bu konuda bilgim yok' de
`
}

// Rephrase wraps a raw tool result in the presentation prompt used after a
// manual dispatch hit. The model must restate, not alter, the result.
func Rephrase(toolResult string) string {
	return `
Sen bir müşteri hizmetleri asistanısın. Aşağıdaki tool sonucunu kullanıcıya düzgün bir şekilde sun:

**Tool Sonucu:**
` + toolResult + `

Kurallar:
- Türkçe cevap ver
- Tool sonucunu aynen kullan, değiştirme
- Emoji kullan
- Kısa ve öz ol
`
}
