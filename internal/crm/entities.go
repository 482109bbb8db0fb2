package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// Quote status transitions are a fixed Dataverse business rule: accepting a
// quote marks it Active/Won, rejecting marks it Closed/Lost.
const (
	quoteStateActive = 1
	quoteStateClosed = 2
	quoteStatusWon   = 4
	quoteStatusLost  = 5
)

// caseOriginWhatsApp tags incidents created through the chat channel.
const caseOriginWhatsApp = 3

// deliveryOrderEntitySet is the custom entity backing delivery bookings.
const deliveryOrderEntitySet = "cr_deliveryorders"

// normalizePhone strips whitespace, hyphens and parentheses before the value
// is used in a contains() filter.
func normalizePhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
	return replacer.Replace(phone)
}

// CustomerByPhone looks up the contact owning a phone number, including its
// parent account. Returns ErrNotFound when no contact matches.
func (d *Dataverse) CustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	normalized := normalizePhone(phone)

	rows, err := d.List(ctx, "contacts", Query{
		Filter: fmt.Sprintf("contains(telephone1,'%s') or contains(mobilephone,'%s')", normalized, normalized),
		Select: "contactid,firstname,lastname,telephone1,mobilephone,emailaddress1",
		Expand: "parentcustomerid_account($select=accountid,name,accountnumber)",
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return mapContactToCustomer(rows[0]), nil
}

// AllCustomers lists accounts with their contacts, for the CRM REST surface.
func (d *Dataverse) AllCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := d.List(ctx, "accounts", Query{
		Select: "accountid,name,accountnumber",
		Expand: "contact_customer_accounts($select=contactid,firstname,lastname,telephone1,mobilephone,emailaddress1)",
		Top:    100,
	})
	if err != nil {
		return nil, err
	}

	customers := make([]models.Customer, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, mapAccountToCustomer(row))
	}
	return customers, nil
}

// CreateLead records a new prospect.
func (d *Dataverse) CreateLead(ctx context.Context, lead *models.Lead) (string, error) {
	fields := map[string]any{
		"subject":       lead.Subject,
		"firstname":     lead.FirstName,
		"lastname":      lead.LastName,
		"telephone1":    lead.Phone,
		"emailaddress1": lead.Email,
		"companyname":   lead.CompanyName,
		"description":   lead.Description,
	}

	id, err := d.Create(ctx, "leads", fields)
	if err != nil {
		return "", err
	}
	log.Info().Str("lead_id", id).Msg("created lead")
	return id, nil
}

// CreateOpportunity records an inquiry from an existing customer, linked to
// its account and contact.
func (d *Dataverse) CreateOpportunity(ctx context.Context, opp *models.Opportunity) (string, error) {
	fields := map[string]any{
		"name":        opp.Name,
		"description": opp.Description,
	}
	if opp.EstimatedValue > 0 {
		fields["estimatedvalue"] = opp.EstimatedValue
	}
	if opp.AccountID != "" {
		fields["parentaccountid@odata.bind"] = "/accounts(" + opp.AccountID + ")"
	}
	if opp.ContactID != "" {
		fields["parentcontactid@odata.bind"] = "/contacts(" + opp.ContactID + ")"
	}

	id, err := d.Create(ctx, "opportunities", fields)
	if err != nil {
		return "", err
	}
	log.Info().Str("opportunity_id", id).Msg("created opportunity")
	return id, nil
}

// QuoteByID fetches one quote with its customer account name.
func (d *Dataverse) QuoteByID(ctx context.Context, quoteID string) (*models.Quote, error) {
	rawQuery := fmt.Sprintf("(%s)?$select=quoteid,quotenumber,name,totalamount,statecode,statuscode"+
		"&$expand=customerid_account($select=name)", quoteID)

	body, err := d.do(ctx, http.MethodGet, d.apiURL+"/quotes"+rawQuery, nil)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, &RemoteError{Status: http.StatusOK, Body: "unparsable quote record"}
	}

	quote := &models.Quote{
		QuoteID:     row.Text("quoteid"),
		QuoteNumber: row.Text("quotenumber"),
		Name:        row.Text("name"),
		TotalAmount: row.Number("totalamount"),
		StateCode:   row.Int("statecode"),
		StatusCode:  row.Int("statuscode"),
	}
	if account := row.Nested("customerid_account"); account != nil {
		quote.CustomerName = account.Text("name")
	}
	return quote, nil
}

// UpdateQuoteStatus applies the accept/reject business rule. Accepting sets
// Active/Won and writes nothing else. Rejecting sets Closed/Lost and appends
// the caller-supplied reason into the description.
func (d *Dataverse) UpdateQuoteStatus(ctx context.Context, quoteID string, accepted bool, reason string) error {
	fields := map[string]any{}
	if accepted {
		fields["statecode"] = quoteStateActive
		fields["statuscode"] = quoteStatusWon
	} else {
		fields["statecode"] = quoteStateClosed
		fields["statuscode"] = quoteStatusLost
		fields["description"] = "Rejected via WhatsApp. Reason: " + reason
	}

	if err := d.Update(ctx, "quotes", quoteID, fields); err != nil {
		return err
	}
	log.Info().Str("quote_id", quoteID).Bool("accepted", accepted).Msg("updated quote status")
	return nil
}

// CreateComplaint opens a case (incident) tagged with the WhatsApp origin.
func (d *Dataverse) CreateComplaint(ctx context.Context, complaint *models.Complaint) (string, error) {
	fields := map[string]any{
		"title":          complaint.Title,
		"description":    complaint.Description,
		"caseorigincode": caseOriginWhatsApp,
		"prioritycode":   complaint.Priority,
	}
	if complaint.AccountID != "" {
		fields["customerid_account@odata.bind"] = "/accounts(" + complaint.AccountID + ")"
	}
	if complaint.ContactID != "" {
		fields["primarycontactid@odata.bind"] = "/contacts(" + complaint.ContactID + ")"
	}

	id, err := d.Create(ctx, "incidents", fields)
	if err != nil {
		return "", err
	}
	log.Info().Str("case_id", id).Msg("created complaint case")
	return id, nil
}

// ComplaintsByCustomer lists a customer's cases, newest first.
func (d *Dataverse) ComplaintsByCustomer(ctx context.Context, accountID string) ([]models.Complaint, error) {
	rows, err := d.List(ctx, "incidents", Query{
		Filter:  fmt.Sprintf("_customerid_value eq '%s'", accountID),
		Select:  "incidentid,title,description,statecode,statuscode,createdon",
		OrderBy: "createdon desc",
	})
	if err != nil {
		return nil, err
	}

	complaints := make([]models.Complaint, 0, len(rows))
	for _, row := range rows {
		complaints = append(complaints, models.Complaint{
			ComplaintID: row.Text("incidentid"),
			Title:       row.Text("title"),
			Description: row.Text("description"),
			StateCode:   row.Int("statecode"),
			StatusCode:  row.Int("statuscode"),
			CreatedOn:   row.Text("createdon"),
		})
	}
	return complaints, nil
}

// SalesOrdersByCustomer lists a customer's open orders, newest first.
func (d *Dataverse) SalesOrdersByCustomer(ctx context.Context, accountID string) ([]models.SalesOrder, error) {
	rows, err := d.List(ctx, "salesorders", Query{
		Filter:  fmt.Sprintf("_customerid_value eq '%s' and statecode eq 0", accountID),
		Select:  "salesorderid,ordernumber,name,totalamount,requestdeliveryby",
		OrderBy: "createdon desc",
	})
	if err != nil {
		return nil, err
	}

	orders := make([]models.SalesOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, models.SalesOrder{
			OrderID:           row.Text("salesorderid"),
			OrderNumber:       row.Text("ordernumber"),
			Name:              row.Text("name"),
			TotalAmount:       row.Number("totalamount"),
			RequestDeliveryBy: row.Text("requestdeliveryby"),
		})
	}
	return orders, nil
}

// CreateDeliveryOrder records a delivery booking against a sales order.
func (d *Dataverse) CreateDeliveryOrder(ctx context.Context, do *models.DeliveryOrder) (string, error) {
	fields := map[string]any{
		"cr_name":            do.Name,
		"cr_quantity":        do.Quantity,
		"cr_deliverydate":    do.DeliveryDate,
		"cr_deliveryaddress": do.DeliveryAddress,
		"cr_remarks":         do.Remarks,
	}
	if do.SalesOrderID != "" {
		fields["cr_salesorderid@odata.bind"] = "/salesorders(" + do.SalesOrderID + ")"
	}
	if do.AccountID != "" {
		fields["cr_customerid@odata.bind"] = "/accounts(" + do.AccountID + ")"
	}

	id, err := d.Create(ctx, deliveryOrderEntitySet, fields)
	if err != nil {
		return "", err
	}
	log.Info().Str("delivery_order_id", id).Msg("created delivery order")
	return id, nil
}

func mapContactToCustomer(contact Row) *models.Customer {
	customer := &models.Customer{
		ContactID: contact.Text("contactid"),
		FirstName: contact.Text("firstname"),
		LastName:  contact.Text("lastname"),
		Phone:     contact.Text("telephone1"),
		Mobile:    contact.Text("mobilephone"),
		Email:     contact.Text("emailaddress1"),
	}
	if account := contact.Nested("parentcustomerid_account"); account != nil {
		customer.AccountID = account.Text("accountid")
		customer.AccountName = account.Text("name")
		customer.AccountNumber = account.Text("accountnumber")
	}
	return customer
}

func mapAccountToCustomer(account Row) models.Customer {
	customer := models.Customer{
		AccountID:     account.Text("accountid"),
		AccountName:   account.Text("name"),
		AccountNumber: account.Text("accountnumber"),
	}
	if contacts := account.NestedList("contact_customer_accounts"); len(contacts) > 0 {
		primary := contacts[0]
		customer.ContactID = primary.Text("contactid")
		customer.FirstName = primary.Text("firstname")
		customer.LastName = primary.Text("lastname")
		customer.Phone = primary.Text("telephone1")
		customer.Mobile = primary.Text("mobilephone")
		customer.Email = primary.Text("emailaddress1")
	}
	return customer
}
