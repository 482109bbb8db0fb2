package models

// Transient DTOs mapped from Dataverse rows. Identity is always the remote
// record's GUID; missing or null source fields map to zero values.

// Customer combines a contact row with its parent account.
type Customer struct {
	ContactID     string `json:"contact_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Mobile        string `json:"mobile"`
	Email         string `json:"email"`
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// Lead is a new prospect captured via the chat channel.
type Lead struct {
	Subject     string `json:"subject"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

// Opportunity is an inquiry from an already-known customer.
type Opportunity struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	EstimatedValue float64 `json:"estimated_value"`
	AccountID      string  `json:"account_id"`
	ContactID      string  `json:"contact_id"`
}

// Quote is a priced offer awaiting the customer's decision.
type Quote struct {
	QuoteID      string  `json:"quote_id"`
	QuoteNumber  string  `json:"quote_number"`
	Name         string  `json:"name"`
	TotalAmount  float64 `json:"total_amount"`
	StateCode    int     `json:"state_code"`
	StatusCode   int     `json:"status_code"`
	CustomerName string  `json:"customer_name"`
}

// Complaint maps to a Dataverse case (incident).
type Complaint struct {
	ComplaintID string `json:"complaint_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"` // 1=High, 2=Normal, 3=Low
	StateCode   int    `json:"state_code"`
	StatusCode  int    `json:"status_code"`
	AccountID   string `json:"account_id"`
	ContactID   string `json:"contact_id"`
	CreatedOn   string `json:"created_on"`
}

// SalesOrder is an open order a delivery can be booked against.
type SalesOrder struct {
	OrderID           string  `json:"order_id"`
	OrderNumber       string  `json:"order_number"`
	Name              string  `json:"name"`
	TotalAmount       float64 `json:"total_amount"`
	RequestDeliveryBy string  `json:"request_delivery_by"`
}

// DeliveryOrder is the custom entity created by the delivery booking flow.
type DeliveryOrder struct {
	Name            string  `json:"name"`
	SalesOrderID    string  `json:"sales_order_id"`
	Quantity        float64 `json:"quantity"`
	DeliveryDate    string  `json:"delivery_date"`
	DeliveryAddress string  `json:"delivery_address"`
	Remarks         string  `json:"remarks"`
	AccountID       string  `json:"account_id"`
}
