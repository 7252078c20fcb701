package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/rag"
	"ai-chatbot-be/pkg/toolctx"
	"ai-chatbot-be/pkg/tools/storeinfo"
)

// Catalog wires the store's tool set into a registry.
type Catalog struct {
	repo contract.KnowledgeRepository
	rag  *rag.Engine
	log  logger.ILogger

	returnPolicy   storeinfo.ReturnPolicy
	paymentMethods []storeinfo.PaymentMethod
	shippingRule   storeinfo.ShippingRule
}

func NewCatalog(repo contract.KnowledgeRepository, ragEngine *rag.Engine, log logger.ILogger) *Catalog {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Catalog{
		repo:           repo,
		rag:            ragEngine,
		log:            log,
		returnPolicy:   storeinfo.DefaultReturnPolicy(),
		paymentMethods: storeinfo.DefaultPaymentMethods(),
		shippingRule:   storeinfo.DefaultShippingRule(),
	}
}

// RegisterAll installs every tool on the registry.
func (c *Catalog) RegisterAll(r *Registry) error {
	all := []*Tool{
		c.searchKnowledgeBase(),
		c.getProductDetails(),
		c.searchProductsByPrice(),
		c.getCategoryList(),
		c.calculateTotalPrice(),
		c.getReturnPolicy(),
		c.getPaymentMethods(),
		c.calculateShipping(),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (c *Catalog) searchKnowledgeBase() *Tool {
	return &Tool{
		Name:        "search_knowledge_base",
		Description: "Bilgi bankasında arama yapar (RAG). Fiyat veya kategori içeren sorgularda filtreli arama uygular.",
		Parameters: objectSchema(map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Arama sorgusu",
			},
		}, "query"),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			query := args.String("query")
			if query == "" {
				return "❌ Arama sorgusu boş olamaz.", nil
			}

			results := c.rag.SmartSearch(ctx, query)
			if len(results) == 0 {
				return "İlgili bilgi bulunamadı.", nil
			}

			var b strings.Builder
			b.WriteString("Bulunan Bilgiler:\n")
			for _, doc := range results {
				content := doc.Content
				if runes := []rune(content); len(runes) > 100 {
					content = string(runes[:100])
				}
				b.WriteString("\n• " + doc.Title + ": " + content + "...\n")
			}
			return b.String(), nil
		},
	}
}

func (c *Catalog) getProductDetails() *Tool {
	return &Tool{
		Name:        "get_product_details",
		Description: "Belirli bir ürünün ID'sine veya adına göre detaylı bilgisini getirir",
		Parameters: objectSchema(map[string]interface{}{
			"product_id": map[string]interface{}{
				"type":        "integer",
				"description": "Ürün ID'si (varsa)",
			},
			"product_name": map[string]interface{}{
				"type":        "string",
				"description": "Ürün adı (ID yoksa)",
			},
		}),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			var product *entity.KnowledgeDocument

			if id, ok := args.Int("product_id"); ok && id > 0 {
				doc, err := c.repo.GetById(ctx, id)
				if err != nil {
					return "", err
				}
				product = doc
			} else if name := args.String("product_name"); name != "" {
				docs, err := c.repo.Search(ctx, name, 1)
				if err != nil {
					return "", err
				}
				if len(docs) > 0 {
					product = docs[0]
				}
			} else {
				return "❌ Lütfen ürün ID'si veya adını belirtin.", nil
			}

			if product == nil {
				return "❌ Ürün bulunamadı.", nil
			}

			if identity, _ := toolctx.From(ctx); !identity.CanAccessProduct(product.Id) {
				c.log.Warn("tools", "product access blocked", map[string]interface{}{
					"subject_id": identity.SubjectId,
					"product_id": product.Id,
				})
				return "⛔ Bu ürüne erişim yetkiniz yok.", nil
			}

			var b strings.Builder
			b.WriteString("📦 **" + product.Title + "**\n\n")
			b.WriteString("📝 **Açıklama:**\n" + product.Content + "\n\n")
			b.WriteString("🏷️ **Kategori:** " + product.Category + "\n")
			b.WriteString("🔖 **Etiketler:** " + product.Tags + "\n")
			if product.Price != nil {
				b.WriteString(fmt.Sprintf("💰 **Fiyat:** %.2f TL\n", *product.Price))
			}
			b.WriteString("📅 **Kayıt Tarihi:** " + product.CreatedAt.Format("02.01.2006") + "\n")
			return b.String(), nil
		},
	}
}

func (c *Catalog) searchProductsByPrice() *Tool {
	return &Tool{
		Name:        "search_products_by_price",
		Description: "Belirli bir fiyat aralığında ürün arar. Kategori filtresi de eklenebilir.",
		Parameters: objectSchema(map[string]interface{}{
			"min_price": map[string]interface{}{
				"type":        "number",
				"description": "Minimum fiyat (TL)",
			},
			"max_price": map[string]interface{}{
				"type":        "number",
				"description": "Maximum fiyat (TL)",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Kategori filtresi (opsiyonel)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Arama kelimesi (opsiyonel)",
			},
		}),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			var minPrice, maxPrice *float64
			if v, ok := args.Float("min_price"); ok {
				minPrice = &v
			}
			if v, ok := args.Float("max_price"); ok {
				maxPrice = &v
			}
			category := args.String("category")
			query := args.String("query")

			products, err := c.repo.FilteredSearch(ctx, query, minPrice, maxPrice, category, 50)
			if err != nil {
				return "", err
			}

			if len(products) == 0 {
				return "❌ Belirtilen kriterlerde ürün bulunamadı.", nil
			}

			// Customers with an allow-list only see their own products.
			identity, _ := toolctx.From(ctx)
			filtered := products[:0]
			for _, p := range products {
				if identity.CanAccessProduct(p.Id) {
					filtered = append(filtered, p)
				}
			}
			products = filtered
			if len(products) == 0 {
				return "❌ Belirtilen kriterlerde ürün bulunamadı.", nil
			}

			var b strings.Builder
			b.WriteString(fmt.Sprintf("✅ **%d Ürün Bulundu**\n\n", len(products)))

			shown := products
			if len(shown) > 10 {
				shown = shown[:10]
			}
			for i, p := range shown {
				b.WriteString(fmt.Sprintf("%d. **%s**\n", i+1, p.Title))
				if p.Price != nil {
					b.WriteString(fmt.Sprintf("   💰 Fiyat: %.2f TL\n", *p.Price))
				}
				b.WriteString("   🏷️ Kategori: " + p.Category + "\n")

				preview := p.Content
				if runes := []rune(preview); len(runes) > 80 {
					preview = string(runes[:80]) + "..."
				}
				b.WriteString("   📝 " + preview + "\n\n")
			}

			if len(products) > 10 {
				b.WriteString(fmt.Sprintf("_... ve %d ürün daha_\n", len(products)-10))
			}
			return b.String(), nil
		},
	}
}

func (c *Catalog) getCategoryList() *Tool {
	return &Tool{
		Name:        "get_category_list",
		Description: "Sistemdeki tüm ürün kategorilerini listeler",
		Parameters:  objectSchema(map[string]interface{}{}),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			docs, err := c.repo.GetAllActive(ctx)
			if err != nil {
				return "", err
			}
			if len(docs) == 0 {
				return "❌ Sistemde henüz kategori bulunmuyor.", nil
			}

			counts := make(map[string]int)
			for _, d := range docs {
				if strings.TrimSpace(d.Category) == "" {
					continue
				}
				counts[d.Category]++
			}
			if len(counts) == 0 {
				return "❌ Kategorisiz ürünler var.", nil
			}

			type catCount struct {
				name  string
				count int
			}
			cats := make([]catCount, 0, len(counts))
			for name, n := range counts {
				cats = append(cats, catCount{name, n})
			}
			sort.Slice(cats, func(i, j int) bool {
				if cats[i].count != cats[j].count {
					return cats[i].count > cats[j].count
				}
				return cats[i].name < cats[j].name
			})

			var b strings.Builder
			b.WriteString(fmt.Sprintf("📂 **Sistemdeki Kategoriler (%d):**\n\n", len(cats)))
			for i, cat := range cats {
				b.WriteString(fmt.Sprintf("%d. **%s** (%d ürün)\n", i+1, cat.name, cat.count))
			}
			return b.String(), nil
		},
	}
}

func (c *Catalog) calculateTotalPrice() *Tool {
	return &Tool{
		Name:        "calculate_total_price",
		Description: "Ürün fiyatlarının toplamını hesaplar. JSON array formatında fiyatlar alır: [100, 250, 50]",
		Parameters: objectSchema(map[string]interface{}{
			"prices": map[string]interface{}{
				"type":        "string",
				"description": "Fiyat listesi (JSON array)",
			},
		}, "prices"),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			var prices []float64

			// Accept both a JSON string and a native array from the model.
			if raw := args.String("prices"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &prices); err != nil {
					return "❌ Geçerli fiyat listesi girilmedi.", nil
				}
			} else if arr, ok := args["prices"].([]interface{}); ok {
				for _, v := range arr {
					if f, ok := v.(float64); ok {
						prices = append(prices, f)
					}
				}
			}

			if len(prices) == 0 {
				return "❌ Geçerli fiyat listesi girilmedi.", nil
			}

			var total float64
			for _, p := range prices {
				total += p
			}
			average := total / float64(len(prices))

			return fmt.Sprintf(
				"🧮 **Hesaplama Sonucu:**\n\n📦 Ürün Sayısı: %d\n💰 Toplam: %.2f TL\n📊 Ortalama: %.2f TL\n",
				len(prices), total, average,
			), nil
		},
	}
}

func (c *Catalog) getReturnPolicy() *Tool {
	return &Tool{
		Name:        "get_return_policy",
		Description: "İade politikası bilgilerini getirir",
		Parameters:  objectSchema(map[string]interface{}{}),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			p := c.returnPolicy

			var b strings.Builder
			b.WriteString("📦 **İade Politikası: " + p.Name + "**\n\n")
			b.WriteString(fmt.Sprintf("⏰ İade Süresi: %d gün\n\n", p.PeriodDays))
			b.WriteString("📋 Koşullar:\n" + p.Conditions + "\n\n")
			if p.ReturnShippingCost != nil {
				b.WriteString(fmt.Sprintf("💰 İade Kargo Ücreti: %.2f TL\n", *p.ReturnShippingCost))
			} else {
				b.WriteString("💰 İade Kargo Ücreti: Ücretsiz\n")
			}
			return b.String(), nil
		},
	}
}

func (c *Catalog) getPaymentMethods() *Tool {
	return &Tool{
		Name:        "get_payment_methods",
		Description: "Mevcut ödeme yöntemlerini listeler",
		Parameters:  objectSchema(map[string]interface{}{}),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			var b strings.Builder
			b.WriteString("💳 **Ödeme Yöntemleri:**\n\n")
			for i, m := range c.paymentMethods {
				b.WriteString(fmt.Sprintf("%d. **%s**\n", i+1, m.Name))
				if m.Description != "" {
					b.WriteString("   " + m.Description + "\n")
				}
				if m.HasInstallment && m.MaxInstallments > 0 {
					b.WriteString(fmt.Sprintf("   ✅ Taksit: %d'e kadar\n", m.MaxInstallments))
				}
				b.WriteString("\n")
			}
			return b.String(), nil
		},
	}
}

func (c *Catalog) calculateShipping() *Tool {
	return &Tool{
		Name:        "calculate_shipping",
		Description: "Sipariş tutarına göre kargo ücretini hesaplar",
		Parameters: objectSchema(map[string]interface{}{
			"order_amount": map[string]interface{}{
				"type":        "number",
				"description": "Sipariş tutarı (TL)",
			},
		}, "order_amount"),
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			amount, ok := args.Float("order_amount")
			if !ok {
				return "❌ Geçerli bir sipariş tutarı girilmedi.", nil
			}
			return c.ShippingText(amount), nil
		},
	}
}

// ShippingText renders the shipping answer for an order amount. Shared with
// the manual dispatcher so both paths produce identical output.
func (c *Catalog) ShippingText(orderAmount float64) string {
	rule := c.shippingRule
	if orderAmount >= rule.FreeThreshold {
		return fmt.Sprintf("Kargo ücretsiz! Teslimat süresi: %d-%d iş günü.", rule.DeliveryDaysMin, rule.DeliveryDaysMax)
	}
	return fmt.Sprintf("Kargo ücreti: %.2f TL. Teslimat süresi: %d-%d iş günü.", rule.FlatCost, rule.DeliveryDaysMin, rule.DeliveryDaysMax)
}

// ReturnPolicyText and PaymentMethodsText expose the policy renderings for
// the manual dispatcher.
func (c *Catalog) ReturnPolicyText(ctx context.Context) (string, error) {
	return c.getReturnPolicy().Handler(ctx, Arguments{})
}

func (c *Catalog) PaymentMethodsText(ctx context.Context) (string, error) {
	return c.getPaymentMethods().Handler(ctx, Arguments{})
}
