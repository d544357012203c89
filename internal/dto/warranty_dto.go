package dto

// WarrantyFilter is bound from the query string of GET /v1/warranties.
type WarrantyFilter struct {
	Status string `form:"status,default=all" validate:"oneof=all active expired"`
}

type WarrantyResponse struct {
	TransactionID   string `json:"transaction_id"`
	CustomerID      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	ProductSoldName string `json:"product_sold_name"`
	Date            string `json:"date"`
	WarrantyDays    int    `json:"warranty_days"`
	WarrantyStart   string `json:"warranty_start"`
	WarrantyEnd     string `json:"warranty_end"`
	Active          bool   `json:"active"`
}
