package main

import (
	"log"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/model"
	"ai-chatbot-be/pkg/database"

	"github.com/fatih/color"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		color.Red("DB_CONNECTION_STRING is not set; migrations need Postgres")
		return
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	color.Cyan("Running migrations...")

	// pgvector must exist before the embeddings table.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Panicf("Failed to create vector extension: %v", err)
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
		log.Panicf("Failed to create pgcrypto extension: %v", err)
	}

	err = db.AutoMigrate(
		&model.KnowledgeDocument{},
		&model.KnowledgeEmbedding{},
		&model.ChatSession{},
		&model.ChatMessage{},
	)
	if err != nil {
		log.Panicf("Migration failed: %v", err)
	}
	color.Green("✅ Migrations complete")

	seedKnowledgeBase(db)
}

func floatPtr(v float64) *float64 { return &v }

func seedKnowledgeBase(db *gorm.DB) {
	var count int64
	db.Model(&model.KnowledgeDocument{}).Count(&count)
	if count > 0 {
		color.Yellow("Knowledge base already seeded (%d documents), skipping", count)
		return
	}

	color.Cyan("Seeding knowledge base...")

	docs := []model.KnowledgeDocument{
		{
			Title:    "Gaming Laptop Pro X15",
			Content:  "Yüksek performanslı oyun bilgisayarı. Intel i7 işlemci, RTX 4060 ekran kartı, 16GB RAM, 1TB SSD. 15.6 inç 144Hz ekran. 2 yıl garanti.",
			Category: "Bilgisayar",
			Tags:     "laptop,oyun,gaming,bilgisayar",
			Price:    floatPtr(34999),
			IsActive: true,
		},
		{
			Title:    "Ofis Laptop Air 14",
			Content:  "Hafif ve taşınabilir ofis bilgisayarı. Intel i5 işlemci, 8GB RAM, 512GB SSD. 14 inç ekran, 10 saat pil ömrü.",
			Category: "Bilgisayar",
			Tags:     "laptop,ofis,notebook,bilgisayar",
			Price:    floatPtr(18499),
			IsActive: true,
		},
		{
			Title:    "Akıllı Telefon Nova S",
			Content:  "6.5 inç AMOLED ekran, 128GB depolama, 50MP kamera, 5000mAh batarya. Hızlı şarj destekli.",
			Category: "Elektronik",
			Tags:     "telefon,akıllı telefon,elektronik",
			Price:    floatPtr(12999),
			IsActive: true,
		},
		{
			Title:    "Tablet Mini 8",
			Content:  "8 inç kompakt tablet. 64GB depolama, çocuk modu, uzun pil ömrü. Eğitim ve eğlence için ideal.",
			Category: "Elektronik",
			Tags:     "tablet,elektronik",
			Price:    floatPtr(4299),
			IsActive: true,
		},
		{
			Title:    "Kablosuz Kulaklık AirSound",
			Content:  "Aktif gürültü engelleme, 30 saat pil ömrü, Bluetooth 5.3. Şarj kutusu dahildir.",
			Category: "Aksesuar",
			Tags:     "kulaklık,kablosuz,aksesuar",
			Price:    floatPtr(1899),
			IsActive: true,
		},
		{
			Title:    "USB-C Hızlı Şarj Kablosu",
			Content:  "2 metre örgülü USB-C kablo. 100W hızlı şarj desteği. Tüm USB-C cihazlarla uyumlu.",
			Category: "Aksesuar",
			Tags:     "kablo,şarj,usb-c,aksesuar",
			Price:    floatPtr(249),
			IsActive: true,
		},
		{
			Title:    "Ergonomik Çalışma Sandalyesi",
			Content:  "Bel destekli, ayarlanabilir kolçaklı ofis sandalyesi. 120kg taşıma kapasitesi. Nefes alan file sırt.",
			Category: "Ev",
			Tags:     "mobilya,sandalye,ofis,ev",
			Price:    floatPtr(5499),
			IsActive: true,
		},
		{
			Title:    "Spor Ayakkabı RunFlex",
			Content:  "Hafif koşu ayakkabısı. Nefes alan kumaş, kaymaz taban. 36-45 numara arası.",
			Category: "Giyim",
			Tags:     "ayakkabı,spor,giyim",
			Price:    floatPtr(2399),
			IsActive: true,
		},
		{
			Title:    "İade ve Değişim Koşulları",
			Content:  "Ürünlerinizi teslim tarihinden itibaren 14 gün içinde iade edebilirsiniz. Ürün kullanılmamış ve orijinal ambalajında olmalıdır. İade kargo ücreti firmamıza aittir. Hijyen ürünlerinde iade kabul edilmez.",
			Category: "",
			Tags:     "iade,değişim,politika",
			IsActive: true,
		},
		{
			Title:    "Kargo ve Teslimat Bilgileri",
			Content:  "500 TL üzeri siparişlerde kargo ücretsizdir. 500 TL altı siparişlerde kargo ücreti 49.90 TL'dir. Teslimat süresi 1-3 iş günüdür. Kargolar hafta içi her gün çıkış yapar.",
			Category: "",
			Tags:     "kargo,teslimat,gönderim",
			IsActive: true,
		},
	}

	for _, doc := range docs {
		if err := db.Create(&doc).Error; err != nil {
			color.Red("Failed to seed %q: %v", doc.Title, err)
			continue
		}
		color.Green("  + %s", doc.Title)
	}

	color.Green("✅ Seeded %d documents", len(docs))
	color.Yellow("Note: run POST /api/knowledge/reembed (as Admin) to generate embeddings")
}
