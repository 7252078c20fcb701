package storeinfo

// Static store policy data. The upstream commerce system owns these records;
// until that integration lands they ship as defaults so the policy tools stay
// functional offline.

type ReturnPolicy struct {
	Name               string
	PeriodDays         int
	Conditions         string
	ReturnShippingCost *float64 // nil means free
}

type PaymentMethod struct {
	Name            string
	Description     string
	HasInstallment  bool
	MaxInstallments int
}

type ShippingRule struct {
	FreeThreshold   float64
	FlatCost        float64
	DeliveryDaysMin int
	DeliveryDaysMax int
}

func DefaultReturnPolicy() ReturnPolicy {
	return ReturnPolicy{
		Name:       "Standart İade",
		PeriodDays: 14,
		Conditions: "- Ürün kullanılmamış ve orijinal ambalajında olmalı\n- Fatura veya fiş ibraz edilmeli\n- Hijyen ürünlerinde iade kabul edilmez",
	}
}

func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{
			Name:            "Kredi Kartı",
			Description:     "Tüm kredi kartları geçerlidir",
			HasInstallment:  true,
			MaxInstallments: 12,
		},
		{
			Name:           "Banka Kartı",
			Description:    "Tek çekim",
			HasInstallment: false,
		},
		{
			Name:           "Havale / EFT",
			Description:    "Sipariş onayından sonra 24 saat içinde ödeme yapılmalıdır",
			HasInstallment: false,
		},
		{
			Name:           "Kapıda Ödeme",
			Description:    "Nakit veya kartla, +9.90 TL hizmet bedeli",
			HasInstallment: false,
		},
	}
}

func DefaultShippingRule() ShippingRule {
	return ShippingRule{
		FreeThreshold:   500,
		FlatCost:        49.90,
		DeliveryDaysMin: 1,
		DeliveryDaysMax: 3,
	}
}
