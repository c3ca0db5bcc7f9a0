package models

import "time"

type ListResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Medicine struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"                  form:"name"                  validate:"required"`
	GenericName          string    `json:"generic_name"          form:"generic_name"`
	Description          string    `json:"description"           form:"description"`
	Manufacturer         string    `json:"manufacturer"          form:"manufacturer"          validate:"required"`
	ApprovalDate         *string   `json:"approval_date"`
	DosageForm           string    `json:"dosage_form"           form:"dosage_form"           validate:"required"`
	Strength             string    `json:"strength"              form:"strength"              validate:"required"`
	RequiresPrescription bool      `json:"requires_prescription" form:"requires_prescription"`
	Contraindications    string    `json:"contraindications"     form:"contraindications"`
	SideEffects          string    `json:"side_effects"          form:"side_effects"`
	StorageInstructions  string    `json:"storage_instructions"  form:"storage_instructions"`
	FDAApproved          bool      `json:"fda_approved"          form:"fda_approved"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type MedicineFilters struct {
	Search               string `url:"search,omitempty"                query:"search"`
	RequiresPrescription *bool  `url:"requires_prescription,omitempty" query:"requires_prescription"`
	FDAApproved          *bool  `url:"fda_approved,omitempty"          query:"fda_approved"`
	Manufacturer         string `url:"manufacturer,omitempty"          query:"manufacturer"`
	DosageForm           string `url:"dosage_form,omitempty"           query:"dosage_form"`
	Page                 int    `url:"page,omitempty"                  query:"page"`
}

type Inventory struct {
	ID            int64     `json:"id"`
	Medicine      Medicine  `json:"medicine"`
	UnitPrice     float64   `json:"unit_price"`
	CostPrice     float64   `json:"cost_price"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"min_stock_level"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (i Inventory) LowStock() bool {
	return i.Quantity <= i.MinStockLevel
}

// InventoryInput is the write shape of an inventory item; the backend expects
// the medicine by id.
type InventoryInput struct {
	Medicine      int64   `json:"medicine"        form:"medicine"        validate:"required"`
	UnitPrice     float64 `json:"unit_price"      form:"unit_price"      validate:"gte=0"`
	CostPrice     float64 `json:"cost_price"      form:"cost_price"      validate:"gte=0"`
	Quantity      int     `json:"quantity"        form:"quantity"        validate:"gte=0"`
	MinStockLevel int     `json:"min_stock_level" form:"min_stock_level" validate:"gte=0"`
}

type InventoryFilters struct {
	LowStock *bool `url:"low_stock,omitempty" query:"low_stock"`
	Page     int   `url:"page,omitempty"      query:"page"`
}

type StockAdjustment struct {
	Quantity int `json:"quantity" form:"quantity" validate:"ne=0"`
}

type Pharmacy struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	ContactPhone string        `json:"contact_phone"`
	ContactEmail string        `json:"contact_email"`
	IsActive     bool          `json:"is_active"`
	Staff        []UserProfile `json:"staff"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type PharmacyInput struct {
	Name         string `json:"name"          form:"name"          validate:"required"`
	Address      string `json:"address"       form:"address"       validate:"required"`
	ContactPhone string `json:"contact_phone" form:"contact_phone" validate:"required"`
	ContactEmail string `json:"contact_email" form:"contact_email" validate:"required,email"`
	IsActive     bool   `json:"is_active"     form:"is_active"`
}

type PharmacyFilters struct {
	Search   string `url:"search,omitempty"    query:"search"`
	IsActive *bool  `url:"is_active,omitempty" query:"is_active"`
	Page     int    `url:"page,omitempty"      query:"page"`
}

type StaffMembership struct {
	UserID int64 `json:"user_id" form:"user_id" validate:"required"`
}

type UserFilters struct {
	Search string `url:"search,omitempty" query:"search"`
	Role   string `url:"role,omitempty"   query:"role"`
	Page   int    `url:"page,omitempty"   query:"page"`
}

type UserUpdate struct {
	Email       string `json:"email,omitempty"        form:"email"        validate:"omitempty,email"`
	FirstName   string `json:"first_name,omitempty"   form:"first_name"`
	LastName    string `json:"last_name,omitempty"    form:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty" form:"phone_number"`
	Address     string `json:"address,omitempty"      form:"address"`
	Role        Role   `json:"role,omitempty"         form:"role"         validate:"omitempty,oneof=ADMIN STAFF CUSTOMER"`
}

type SalesDashboard struct {
	TotalSales        int     `json:"total_sales"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
}

type SalesByType struct {
	Type    string  `json:"type"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type DailySalesReport struct {
	Date         string  `json:"date"`
	TotalSales   int     `json:"total_sales"`
	TotalRevenue float64 `json:"total_revenue"`
}

type ProductSalesReport struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold int     `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

type ReportParams struct {
	StartDate  string `url:"start_date,omitempty"  query:"start_date"`
	EndDate    string `url:"end_date,omitempty"    query:"end_date"`
	PharmacyID int64  `url:"pharmacy_id,omitempty" query:"pharmacy_id"`
}

type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
)

type Alert struct {
	InventoryID   int64
	Medicine      Medicine
	Quantity      int
	MinStockLevel int
	Severity      AlertSeverity
}

// AlertFromInventory derives a low stock alert; ok is false when the item is
// above its minimum stock level.
func AlertFromInventory(i Inventory) (Alert, bool) {
	if !i.LowStock() {
		return Alert{}, false
	}
	sev := SeverityMedium
	if i.Quantity*2 <= i.MinStockLevel {
		sev = SeverityHigh
	}
	return Alert{
		InventoryID:   i.ID,
		Medicine:      i.Medicine,
		Quantity:      i.Quantity,
		MinStockLevel: i.MinStockLevel,
		Severity:      sev,
	}, true
}
