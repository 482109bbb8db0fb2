package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/crm"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
	"github.com/deepnsharma/crm-chat-connector/internal/storage"
)

// CRMClient is the chatbot's view of the CRM gateway, satisfied by
// *crm.Dataverse and mockable in tests.
type CRMClient interface {
	CustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	SalesOrdersByCustomer(ctx context.Context, accountID string) ([]models.SalesOrder, error)
	CreateLead(ctx context.Context, lead *models.Lead) (string, error)
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) (string, error)
	CreateComplaint(ctx context.Context, complaint *models.Complaint) (string, error)
	CreateDeliveryOrder(ctx context.Context, do *models.DeliveryOrder) (string, error)
	UpdateQuoteStatus(ctx context.Context, quoteID string, accepted bool, reason string) error
}

// Chatbot drives the per-conversation state machine. Turns for the same
// phone number are serialized; different phone numbers proceed concurrently.
type Chatbot struct {
	store  storage.Store
	crm    CRMClient
	sender MessageSender
	events EventSink

	// one mutex per phone number, lazily created
	locks sync.Map
}

// NewChatbot wires the engine to its collaborators.
func NewChatbot(store storage.Store, crmClient CRMClient, sender MessageSender, events EventSink) *Chatbot {
	return &Chatbot{
		store:  store,
		crm:    crmClient,
		sender: sender,
		events: events,
	}
}

func (c *Chatbot) lockFor(phone string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(phone, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessIncoming handles one inbound message end to end: load or create the
// session, refresh CRM identity, dispatch the current state's handler, and
// persist the resulting state. It never returns an error for business
// failures; those degrade to user-facing messages.
func (c *Chatbot) ProcessIncoming(ctx context.Context, msg *models.IncomingMessage) {
	mu := c.lockFor(msg.From)
	mu.Lock()
	defer mu.Unlock()

	session := c.getOrCreateSession(msg.From)
	c.resolveIdentity(ctx, session)

	log.Info().
		Str("phone", msg.From).
		Str("state", string(session.State)).
		Str("input", msg.Input()).
		Msg("processing message")

	c.dispatch(ctx, session, msg)
}

// HandleQuoteResponse is the entry point for quotation accept/decline button
// replies, which bypass the main menu.
func (c *Chatbot) HandleQuoteResponse(ctx context.Context, phone, quoteID string, accepted bool) {
	mu := c.lockFor(phone)
	mu.Lock()
	defer mu.Unlock()

	session := c.getOrCreateSession(phone)
	c.resolveIdentity(ctx, session)

	session.FlowData["quoteId"] = quoteID
	session.FlowData["accepted"] = fmt.Sprintf("%t", accepted)

	if accepted {
		if err := c.crm.UpdateQuoteStatus(ctx, quoteID, true, ""); err != nil {
			log.Error().Err(err).Str("quote_id", quoteID).Msg("failed to accept quote")
			c.sendText(session, "Sorry, there was an error processing your acceptance. Please contact your sales representative.")
		} else {
			c.sendText(session, "✅ Thank you for accepting the quote!\n\nOur team will process this and create your sales order shortly.")
			c.events.QuoteResponse(quoteID, true, "", session)
		}
		c.reset(session)
		return
	}

	c.sendText(session, "We're sorry to hear that. Could you please tell us why you're declining the quote?\n\n(Your feedback helps us serve you better)")
	c.updateState(session, models.StateQuoteReason)
}

// dispatch routes one turn to the handler for the session's current state.
func (c *Chatbot) dispatch(ctx context.Context, session *models.Session, msg *models.IncomingMessage) {
	input := msg.Input()
	text := msg.Text

	switch session.State {
	case models.StateInitial:
		c.handleInitial(session)

	case models.StateMainMenu:
		c.handleMainMenu(ctx, session, input)

	case models.StateLeadName:
		c.handleLeadName(session, text)
	case models.StateLeadCompany:
		c.handleLeadCompany(session, text)
	case models.StateLeadEmail:
		c.handleLeadEmail(session, text)
	case models.StateLeadProductInterest:
		c.handleLeadProductInterest(session, text)
	case models.StateLeadQuantity:
		c.handleLeadQuantity(session, text)
	case models.StateLeadConfirm:
		c.handleLeadConfirm(ctx, session, input)

	case models.StateComplaintType:
		c.handleComplaintType(session, input)
	case models.StateComplaintDescription:
		c.handleComplaintDescription(session, text)
	case models.StateComplaintPriority:
		c.handleComplaintPriority(session, input)
	case models.StateComplaintConfirm:
		c.handleComplaintConfirm(ctx, session, input)

	case models.StateDoSelectOrder:
		c.handleDoSelectOrder(session, input)
	case models.StateDoQuantity:
		c.handleDoQuantity(session, text)
	case models.StateDoDeliveryDate:
		c.handleDoDeliveryDate(session, text)
	case models.StateDoAddress:
		c.handleDoAddress(session, text)
	case models.StateDoConfirm:
		c.handleDoConfirm(ctx, session, input)

	case models.StateQuoteReason:
		c.handleQuoteReason(ctx, session, text)

	default:
		c.handleInitial(session)
	}
}

// ==================== INITIAL & MENU ====================

func (c *Chatbot) handleInitial(session *models.Session) {
	greeting := "Hello! 👋\nWelcome to DPL Customer Service."
	if session.CustomerName != "" {
		greeting = fmt.Sprintf("Hello %s! 👋\nWelcome to DPL Customer Service.", session.CustomerName)
	}

	buttons := []models.Button{
		{ID: "menu_inquiry", Title: "New Inquiry"},
		{ID: "menu_complaint", Title: "Register Complaint"},
		{ID: "menu_do", Title: "Book Delivery"},
	}

	c.sendButtons(session, "DPL WhatsApp Service",
		greeting+"\n\nHow can I help you today?",
		"Reply with your choice", buttons)

	c.updateState(session, models.StateMainMenu)
}

func (c *Chatbot) handleMainMenu(ctx context.Context, session *models.Session, choice string) {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "menu_inquiry", "1", "inquiry", "new inquiry":
		c.startLeadFlow(session)
	case "menu_complaint", "2", "complaint":
		c.startComplaintFlow(session)
	case "menu_do", "3", "delivery", "book delivery":
		c.startDeliveryOrderFlow(ctx, session)
	default:
		// Unmatched input re-shows the menu instead of erroring
		c.sendText(session, "I didn't understand that. Please select an option from the menu.")
		c.handleInitial(session)
	}
}

// ==================== LEAD FLOW ====================

func (c *Chatbot) startLeadFlow(session *models.Session) {
	session.FlowData = make(map[string]string)

	if session.CustomerID != "" {
		// Known customer: skip contact details, create an opportunity
		c.sendText(session, "Great! I'll help you submit a new inquiry.\n\nPlease describe the product you're interested in:")
		c.updateState(session, models.StateLeadProductInterest)
		return
	}

	c.sendText(session, "Great! I'll help you submit an inquiry.\n\nPlease provide your full name:")
	c.updateState(session, models.StateLeadName)
}

func (c *Chatbot) handleLeadName(session *models.Session, name string) {
	session.FlowData["name"] = name
	c.sendText(session, "Thank you, "+name+"!\n\nPlease provide your company name:")
	c.updateState(session, models.StateLeadCompany)
}

func (c *Chatbot) handleLeadCompany(session *models.Session, company string) {
	session.FlowData["company"] = company
	c.sendText(session, "Got it!\n\nPlease provide your email address:")
	c.updateState(session, models.StateLeadEmail)
}

func (c *Chatbot) handleLeadEmail(session *models.Session, email string) {
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		// The only validation in the system: re-prompt without advancing
		c.sendText(session, "That doesn't look like a valid email. Please provide a valid email address:")
		return
	}
	session.FlowData["email"] = email
	c.sendText(session, "What product are you interested in?")
	c.updateState(session, models.StateLeadProductInterest)
}

func (c *Chatbot) handleLeadProductInterest(session *models.Session, product string) {
	session.FlowData["product"] = product
	c.sendText(session, "What quantity are you looking for? (in MT)")
	c.updateState(session, models.StateLeadQuantity)
}

func (c *Chatbot) handleLeadQuantity(session *models.Session, quantity string) {
	session.FlowData["quantity"] = quantity

	data := session.FlowData
	var summary string
	if session.CustomerID != "" {
		summary = fmt.Sprintf(
			"Please confirm your inquiry:\n\n📦 Product: %s\n📊 Quantity: %s MT\n\nIs this correct?",
			data["product"], quantity)
	} else {
		summary = fmt.Sprintf(
			"Please confirm your details:\n\n👤 Name: %s\n🏢 Company: %s\n📧 Email: %s\n📦 Product: %s\n📊 Quantity: %s MT\n\nIs this correct?",
			data["name"], data["company"], data["email"], data["product"], quantity)
	}

	c.sendButtons(session, "Confirm Inquiry", summary, "", confirmButtons())
	c.updateState(session, models.StateLeadConfirm)
}

func (c *Chatbot) handleLeadConfirm(ctx context.Context, session *models.Session, response string) {
	if !isConfirmed(response) {
		c.sendText(session, "No problem! Your inquiry has been cancelled.")
		c.reset(session)
		return
	}

	data := session.FlowData
	if session.CustomerID != "" {
		c.commitOpportunity(ctx, session, data)
	} else {
		c.commitLead(ctx, session, data)
	}
	c.reset(session)
}

func (c *Chatbot) commitOpportunity(ctx context.Context, session *models.Session, data map[string]string) {
	opp := &models.Opportunity{
		Name:        "WhatsApp Inquiry - " + data["product"],
		Description: "Product: " + data["product"] + "\nQuantity: " + data["quantity"] + " MT",
		AccountID:   session.CustomerID,
		ContactID:   session.ContactID,
	}

	oppID, err := c.crm.CreateOpportunity(ctx, opp)
	if err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to create opportunity")
		c.sendText(session, "Sorry, there was an error processing your request. Please try again later or contact us directly.")
		return
	}

	c.sendText(session, fmt.Sprintf(
		"✅ Your inquiry has been submitted successfully!\n\nReference: %s\n\nOur sales team will contact you shortly. Thank you!",
		shortRef("OPP", oppID)))
	c.events.OpportunityCreated(oppID, session)
}

func (c *Chatbot) commitLead(ctx context.Context, session *models.Session, data map[string]string) {
	first, last := splitName(data["name"])
	lead := &models.Lead{
		Subject:     "WhatsApp Lead - " + data["product"],
		FirstName:   first,
		LastName:    last,
		CompanyName: data["company"],
		Email:       data["email"],
		Phone:       session.PhoneNumber,
		Description: "Product Interest: " + data["product"] + "\nQuantity: " + data["quantity"] + " MT",
	}

	leadID, err := c.crm.CreateLead(ctx, lead)
	if err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to create lead")
		c.sendText(session, "Sorry, there was an error processing your request. Please try again later or contact us directly.")
		return
	}

	c.sendText(session, fmt.Sprintf(
		"✅ Thank you for your inquiry!\n\nReference: %s\n\nOur sales team will contact you shortly.",
		shortRef("LEAD", leadID)))
	c.events.LeadCreated(leadID, session)
}

// ==================== COMPLAINT FLOW ====================

func (c *Chatbot) startComplaintFlow(session *models.Session) {
	if session.CustomerID == "" {
		c.sendText(session, "I couldn't find your account in our system. Please contact our support team directly or provide your customer ID.")
		c.reset(session)
		return
	}

	session.FlowData = make(map[string]string)

	sections := []models.ListSection{{
		Title: "Complaint Types",
		Rows: []models.ListRow{
			{ID: "complaint_quality", Title: "Quality Issue", Description: "Product quality related complaints"},
			{ID: "complaint_delivery", Title: "Delivery Issue", Description: "Late or wrong delivery"},
			{ID: "complaint_billing", Title: "Billing Issue", Description: "Invoice or payment related"},
			{ID: "complaint_other", Title: "Other", Description: "Other issues"},
		},
	}}

	c.sendList(session, "Register Complaint",
		"Please select the type of issue you're facing:", "", "Select Type", sections)
	c.updateState(session, models.StateComplaintType)
}

func (c *Chatbot) handleComplaintType(session *models.Session, complaintType string) {
	session.FlowData["type"] = complaintType
	c.sendText(session, "Please describe the issue in detail:")
	c.updateState(session, models.StateComplaintDescription)
}

func (c *Chatbot) handleComplaintDescription(session *models.Session, description string) {
	session.FlowData["description"] = description

	buttons := []models.Button{
		{ID: "priority_high", Title: "🔴 High"},
		{ID: "priority_normal", Title: "🟡 Normal"},
		{ID: "priority_low", Title: "🟢 Low"},
	}
	c.sendButtons(session, "Priority", "How urgent is this issue?", "", buttons)
	c.updateState(session, models.StateComplaintPriority)
}

func (c *Chatbot) handleComplaintPriority(session *models.Session, priority string) {
	priorityCode := mapPriority(priority)
	session.FlowData["priority"] = fmt.Sprintf("%d", priorityCode)
	session.FlowData["priorityLabel"] = strings.ToUpper(strings.TrimPrefix(priority, "priority_"))

	data := session.FlowData
	summary := fmt.Sprintf(
		"Please confirm your complaint:\n\n📋 Type: %s\n📝 Description: %s\n⚡ Priority: %s\n\nSubmit this complaint?",
		strings.ToUpper(strings.TrimPrefix(data["type"], "complaint_")),
		data["description"],
		data["priorityLabel"])

	c.sendButtons(session, "Confirm Complaint", summary, "", confirmButtons())
	c.updateState(session, models.StateComplaintConfirm)
}

func (c *Chatbot) handleComplaintConfirm(ctx context.Context, session *models.Session, response string) {
	if !isConfirmed(response) {
		c.sendText(session, "Complaint registration cancelled.")
		c.reset(session)
		return
	}

	data := session.FlowData
	complaint := &models.Complaint{
		Title:       "WhatsApp Complaint - " + strings.ToUpper(strings.TrimPrefix(data["type"], "complaint_")),
		Description: data["description"],
		Priority:    mapPriorityCode(data["priority"]),
		AccountID:   session.CustomerID,
		ContactID:   session.ContactID,
	}

	complaintID, err := c.crm.CreateComplaint(ctx, complaint)
	if err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to create complaint")
		c.sendText(session, "Sorry, there was an error registering your complaint. Please try again later.")
		c.reset(session)
		return
	}

	c.sendText(session, fmt.Sprintf(
		"✅ Your complaint has been registered!\n\nTicket ID: %s\n\nOur team will investigate and get back to you shortly. Thank you for your patience.",
		shortRef("CASE", complaintID)))
	c.events.ComplaintRegistered(complaintID, session)
	c.reset(session)
}

// ==================== DELIVERY ORDER FLOW ====================

func (c *Chatbot) startDeliveryOrderFlow(ctx context.Context, session *models.Session) {
	if session.CustomerID == "" {
		c.sendText(session, "I couldn't find your account in our system. Please contact our sales team for assistance.")
		c.reset(session)
		return
	}

	session.FlowData = make(map[string]string)

	orders, err := c.crm.SalesOrdersByCustomer(ctx, session.CustomerID)
	if err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to fetch sales orders")
		c.sendText(session, "Sorry, couldn't fetch your orders. Please try again later.")
		c.reset(session)
		return
	}
	if len(orders) == 0 {
		c.sendText(session, "You don't have any active orders to book a delivery against. Please contact your sales representative.")
		c.reset(session)
		return
	}

	rows := make([]models.ListRow, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, models.ListRow{
			ID:          "order_" + order.OrderID,
			Title:       order.OrderNumber,
			Description: fmt.Sprintf("%s - ₹%.2f", order.Name, order.TotalAmount),
		})
	}
	sections := []models.ListSection{{Title: "Your Orders", Rows: rows}}

	c.sendList(session, "Book Delivery Order",
		"Select the order you want to book delivery against:", "", "Select Order", sections)
	c.updateState(session, models.StateDoSelectOrder)
}

func (c *Chatbot) handleDoSelectOrder(session *models.Session, orderID string) {
	session.FlowData["orderId"] = strings.TrimPrefix(orderID, "order_")
	c.sendText(session, "What quantity do you want to book for delivery? (in MT)")
	c.updateState(session, models.StateDoQuantity)
}

func (c *Chatbot) handleDoQuantity(session *models.Session, quantity string) {
	session.FlowData["quantity"] = quantity
	c.sendText(session, "When do you need the delivery? (Please provide date in DD/MM/YYYY format)")
	c.updateState(session, models.StateDoDeliveryDate)
}

func (c *Chatbot) handleDoDeliveryDate(session *models.Session, date string) {
	session.FlowData["deliveryDate"] = date
	c.sendText(session, "Please provide the delivery address:")
	c.updateState(session, models.StateDoAddress)
}

func (c *Chatbot) handleDoAddress(session *models.Session, address string) {
	session.FlowData["address"] = address

	data := session.FlowData
	summary := fmt.Sprintf(
		"Please confirm your delivery order:\n\n📦 Quantity: %s MT\n📅 Delivery Date: %s\n📍 Address: %s\n\nConfirm this delivery order?",
		data["quantity"], data["deliveryDate"], address)

	c.sendButtons(session, "Confirm Delivery", summary, "", confirmButtons())
	c.updateState(session, models.StateDoConfirm)
}

func (c *Chatbot) handleDoConfirm(ctx context.Context, session *models.Session, response string) {
	if !isConfirmed(response) {
		c.sendText(session, "Delivery order cancelled.")
		c.reset(session)
		return
	}

	data := session.FlowData
	do := &models.DeliveryOrder{
		Name:            fmt.Sprintf("DO-%d", time.Now().UnixMilli()),
		SalesOrderID:    data["orderId"],
		Quantity:        parseQuantity(data["quantity"]),
		DeliveryDate:    data["deliveryDate"],
		DeliveryAddress: data["address"],
		AccountID:       session.CustomerID,
	}

	doID, err := c.crm.CreateDeliveryOrder(ctx, do)
	if err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to create delivery order")
		c.sendText(session, "Sorry, there was an error creating your delivery order. Please contact your sales representative.")
		c.reset(session)
		return
	}

	c.sendText(session, fmt.Sprintf(
		"✅ Your delivery order has been created!\n\nDO Number: %s\n\nYou will receive confirmation once it's processed. Thank you!",
		shortRef("DO", doID)))
	c.events.DeliveryOrderCreated(doID, session)
	c.reset(session)
}

// ==================== QUOTE REASON ====================

func (c *Chatbot) handleQuoteReason(ctx context.Context, session *models.Session, reason string) {
	quoteID := session.FlowData["quoteId"]

	if err := c.crm.UpdateQuoteStatus(ctx, quoteID, false, reason); err != nil {
		log.Error().Err(err).Str("quote_id", quoteID).Msg("failed to reject quote")
	} else {
		c.sendText(session, "Thank you for your feedback. Your key account manager will contact you to discuss alternatives.\n\nIs there anything else we can help you with?")
		c.events.QuoteResponse(quoteID, false, reason, session)
	}

	c.reset(session)
}

// ==================== SESSION MANAGEMENT ====================

func (c *Chatbot) getOrCreateSession(phone string) *models.Session {
	session, err := c.store.GetSession(phone)
	if err == nil {
		return session
	}
	if !errors.Is(err, storage.ErrSessionNotFound) {
		log.Error().Err(err).Str("phone", phone).Msg("failed to load session, starting fresh")
	}

	session = models.NewSession(phone)
	if err := c.store.SaveSession(session); err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("failed to persist new session")
	}
	return session
}

// resolveIdentity refreshes the session's CRM linkage. NotFound is normal:
// the session simply proceeds without a customer reference.
func (c *Chatbot) resolveIdentity(ctx context.Context, session *models.Session) {
	customer, err := c.crm.CustomerByPhone(ctx, session.PhoneNumber)
	if err != nil {
		if !errors.Is(err, crm.ErrNotFound) {
			log.Warn().Err(err).Str("phone", session.PhoneNumber).Msg("customer lookup failed, proceeding without identity")
		}
		return
	}
	session.CustomerID = customer.AccountID
	session.ContactID = customer.ContactID
	session.CustomerName = customer.AccountName
}

func (c *Chatbot) updateState(session *models.Session, state models.State) {
	session.State = state
	session.UpdatedAt = time.Now()
	if err := c.store.SaveSession(session); err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to save session")
	}
}

func (c *Chatbot) reset(session *models.Session) {
	session.Reset()
	if err := c.store.SaveSession(session); err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to save session")
	}
}

// ==================== OUTBOUND HELPERS ====================

func (c *Chatbot) sendText(session *models.Session, body string) {
	if _, err := c.sender.SendText(session.PhoneNumber, body); err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to send text message")
	}
}

func (c *Chatbot) sendButtons(session *models.Session, header, body, footer string, buttons []models.Button) {
	if _, err := c.sender.SendButtons(session.PhoneNumber, header, body, footer, buttons); err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to send button message")
	}
}

func (c *Chatbot) sendList(session *models.Session, header, body, footer, buttonText string, sections []models.ListSection) {
	if _, err := c.sender.SendList(session.PhoneNumber, header, body, footer, buttonText, sections); err != nil {
		log.Error().Err(err).Str("phone", session.PhoneNumber).Msg("failed to send list message")
	}
}

// ==================== SMALL HELPERS ====================

func confirmButtons() []models.Button {
	return []models.Button{
		{ID: "confirm_yes", Title: "✅ Yes, Submit"},
		{ID: "confirm_no", Title: "❌ No, Cancel"},
	}
}

func isConfirmed(response string) bool {
	return response == "confirm_yes" || strings.Contains(strings.ToLower(response), "yes")
}

// mapPriority turns a priority button id into the CRM priority code.
// High=1, Low=3, everything else (including Normal) defaults to 2.
func mapPriority(input string) int {
	switch input {
	case "priority_high":
		return 1
	case "priority_low":
		return 3
	default:
		return 2
	}
}

func mapPriorityCode(stored string) int {
	switch stored {
	case "1":
		return 1
	case "3":
		return 3
	default:
		return 2
	}
}

func splitName(full string) (first, last string) {
	parts := strings.SplitN(full, " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

func shortRef(prefix, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return prefix + "-" + strings.ToUpper(short)
}

func parseQuantity(s string) float64 {
	qty, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return qty
}
