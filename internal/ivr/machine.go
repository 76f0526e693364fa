package ivr

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ivr-platform/internal/benefits"
	"ivr-platform/internal/billing"
	"ivr-platform/internal/customer"
	"ivr-platform/internal/records"
	"ivr-platform/internal/session"
)

// Machine drives the caller journey. Every webhook maps to exactly one method
// call, and every method returns a menu instruction; faults never escape as
// errors, they degrade to the system error menu so the caller is not left
// hanging on a dead line.
type Machine struct {
	sessions  session.Store
	directory customer.Directory
	records   records.Repository
	gateway   billing.Gateway
	benefits  *benefits.Calculator
	log       *slog.Logger

	// subscriptionMonths is the window granted on renewal.
	subscriptionMonths int

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

// EntryParams are the PBX fields delivered on the entry webhook.
type EntryParams struct {
	CallID        string
	Phone         string
	Num           string
	DID           string
	CallType      string
	CallStatus    string
	ExtensionID   string
	ExtensionPath string
}

func NewMachine(
	sessions session.Store,
	directory customer.Directory,
	repo records.Repository,
	gateway billing.Gateway,
	calc *benefits.Calculator,
	log *slog.Logger,
	subscriptionMonths int,
) *Machine {
	if subscriptionMonths <= 0 {
		subscriptionMonths = 12
	}
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		sessions:           sessions,
		directory:          directory,
		records:            repo,
		gateway:            gateway,
		benefits:           calc,
		log:                log,
		subscriptionMonths: subscriptionMonths,
		clock:              time.Now,
	}
}

// HandleEntry answers the call-start webhook: record the call, seed the
// session with the PBX fields, and route by subscription state.
func (m *Machine) HandleEntry(ctx context.Context, p EntryParams) Response {
	cust, found, err := m.directory.FindByPhone(ctx, p.Phone)
	if err != nil {
		m.log.Error("customer lookup failed", "call_id", p.CallID, "error", err)
		return systemErrorMenu()
	}

	call := records.Call{
		CallID:        p.CallID,
		PhoneNumber:   p.Phone,
		Num:           p.Num,
		DID:           p.DID,
		CallType:      p.CallType,
		CallStatus:    p.CallStatus,
		ExtensionID:   p.ExtensionID,
		ExtensionPath: p.ExtensionPath,
	}
	if found {
		id := cust.ID
		call.CustomerID = &id
	}
	if _, err := m.records.UpsertCall(ctx, call); err != nil {
		m.log.Error("call upsert failed", "call_id", p.CallID, "error", err)
		return systemErrorMenu()
	}

	seed := map[string]string{"PBXphone": p.Phone}
	setField(seed, "PBXnum", p.Num)
	setField(seed, "PBXdid", p.DID)
	setField(seed, "PBXcallType", p.CallType)
	setField(seed, "PBXcallStatus", p.CallStatus)
	setField(seed, "PBXextensionId", p.ExtensionID)
	setField(seed, "PBXextensionPath", p.ExtensionPath)
	if found {
		seed["customer_id"] = strconv.FormatInt(cust.ID, 10)
	}
	if err := m.sessions.Merge(ctx, p.CallID, seed); err != nil {
		m.log.Error("session seed failed", "call_id", p.CallID, "error", err)
		return systemErrorMenu()
	}

	return m.entryDecision(cust, found)
}

func (m *Machine) entryDecision(cust customer.Customer, found bool) Response {
	switch {
	case !found:
		return newCustomerMenu()
	case !cust.SubscriptionActiveAt(m.today()):
		return renewSubscriptionMenu()
	default:
		return mainMenu()
	}
}

// HandleInput answers one collected input: persist it, then advance the flow.
func (m *Machine) HandleInput(ctx context.Context, callID, name, value string) Response {
	if err := m.sessions.Merge(ctx, callID, map[string]string{name: value}); err != nil {
		m.log.Error("session merge failed", "call_id", callID, "input", name, "error", err)
		return systemErrorMenu()
	}
	// The call row may be missing when the entry webhook never arrived
	// (mid-call redeploy); the journey still works off the session.
	if err := m.records.MergeCallData(ctx, callID, map[string]string{name: value}); err != nil {
		m.log.Warn("call data merge failed", "call_id", callID, "input", name, "error", err)
	}

	switch {
	case name == "newCustomer":
		return m.newCustomerChoice(value)
	case name == "newCustomerID":
		return m.registerCustomer(ctx, callID, value)
	case name == "renewSubscription":
		return m.renewalChoice(value)
	case name == "renewalConfirm":
		return m.renewalConfirm(ctx, callID, value)
	case name == "mainMenu":
		return m.mainMenuChoice(ctx, callID, value)
	case name == "receiptAmount":
		return m.receiptAmount(value)
	case name == "receiptDescription":
		return m.receiptDescription(ctx, callID, value)
	case name == "cancelReceiptId":
		return m.cancelReceipt(ctx, callID, value)
	case name == "numChildren":
		return m.childrenCount(ctx, callID, value)
	case strings.HasPrefix(name, "child_birth_year_"):
		return m.childBirthYear(ctx, callID, name, value)
	case name == "spouse1_workplaces" || name == "spouse2_workplaces":
		return m.spouseWorkplaces(ctx, callID, name, value)
	case name == "customerMessage":
		return m.customerMessage(ctx, callID, value)
	case name == "annualReport":
		return m.annualReportChoice(ctx, callID, value)
	case name == "benefitsMenu":
		return m.benefitsChoice(ctx, callID, value)
	case name == "invalidAmount":
		return m.retryChoice(value, receiptAmountPrompt())
	case name == "receiptFailed":
		return m.retryChoice(value, receiptAmountPrompt())
	case name == "registrationFail":
		return m.retryChoice(value, newCustomerIDPrompt())
	default:
		m.log.Warn("unrecognized input", "call_id", callID, "input", name, "value", value)
		return mainMenu()
	}
}

func (m *Machine) newCustomerChoice(choice string) Response {
	if choice == "1" {
		return newCustomerIDPrompt()
	}
	return mainMenu()
}

// registerCustomer creates the customer on first contact. A caller whose
// phone is already registered is routed by the normal entry decision instead,
// which makes replayed registration webhooks harmless.
func (m *Machine) registerCustomer(ctx context.Context, callID, idNumber string) Response {
	sess, err := m.sessions.Get(ctx, callID)
	if err != nil {
		m.log.Error("session read failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}
	phone := sess["PBXphone"]
	if phone == "" {
		m.log.Warn("registration without phone in session", "call_id", callID)
		return mainMenu()
	}

	existing, found, err := m.directory.FindByPhone(ctx, phone)
	if err != nil {
		m.log.Error("customer lookup failed", "call_id", callID, "error", err)
		return registrationFailMenu()
	}
	if found {
		return m.entryDecision(existing, true)
	}

	cust, err := m.directory.Create(ctx, phone, "", "")
	if err != nil {
		m.log.Error("customer create failed", "call_id", callID, "phone", phone, "error", err)
		return registrationFailMenu()
	}
	m.log.Info("customer registered", "call_id", callID, "customer_id", cust.ID)

	if err := m.sessions.Merge(ctx, callID, map[string]string{"customer_id": strconv.FormatInt(cust.ID, 10)}); err != nil {
		m.log.Warn("session merge failed after registration", "call_id", callID, "error", err)
	}
	return mainMenu()
}

func (m *Machine) renewalChoice(choice string) Response {
	if choice == "1" {
		return renewalConfirmMenu()
	}
	return mainMenu()
}

func (m *Machine) renewalConfirm(ctx context.Context, callID, choice string) Response {
	if choice != "1" {
		return mainMenu()
	}

	cust, ok := m.resolveCustomer(ctx, callID)
	if !ok {
		return systemErrorMenu()
	}
	renewed, err := m.directory.RenewSubscription(ctx, cust.ID, m.subscriptionMonths)
	if err != nil {
		m.log.Error("subscription renewal failed", "call_id", callID, "customer_id", cust.ID, "error", err)
		return systemErrorMenu()
	}
	m.log.Info("subscription renewed", "call_id", callID, "customer_id", cust.ID, "until", renewed.SubscriptionEnd)
	return renewalSuccessMenu(renewed.SubscriptionEnd)
}

func (m *Machine) mainMenuChoice(ctx context.Context, callID, choice string) Response {
	switch choice {
	case "1":
		return receiptAmountPrompt()
	case "2":
		return cancelReceiptPrompt()
	case "3":
		return numChildrenPrompt()
	case "4":
		return m.showBenefits(ctx, callID)
	case "5":
		return leaveMessagePrompt(m.clock())
	case "6":
		return annualReportMenu()
	case "0":
		return mainMenu()
	default:
		return invalidChoiceMenu()
	}
}

func (m *Machine) receiptAmount(value string) Response {
	if value == skipSentinel {
		return mainMenu()
	}
	amount, err := strconv.Atoi(value)
	if err != nil || amount <= 0 {
		return invalidAmountMenu()
	}
	return receiptDescriptionPrompt(amount)
}

// receiptDescription finalizes the receipt: a pending row is written first so
// the audit trail exists even when the gateway round trip fails.
func (m *Machine) receiptDescription(ctx context.Context, callID, value string) Response {
	sess, err := m.sessions.Get(ctx, callID)
	if err != nil {
		m.log.Error("session read failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}

	amount, err := strconv.Atoi(sess["receiptAmount"])
	if err != nil || amount <= 0 || sess["PBXphone"] == "" {
		m.log.Warn("receipt description without amount or phone", "call_id", callID)
		return systemErrorMenu()
	}

	cust, found, err := m.directory.FindByPhone(ctx, sess["PBXphone"])
	if err != nil || !found {
		m.log.Error("customer resolution failed for receipt", "call_id", callID, "found", found, "error", err)
		return systemErrorMenu()
	}

	description := value
	if description == noDescriptionSentinel {
		description = defaultReceiptDescription
	}

	payload := billing.ReceiptPayload{
		Amount:      amount,
		Description: description,
		ClientName:  cust.Name,
		ClientPhone: cust.PhoneNumber,
		ClientEmail: cust.Email,
	}
	requestData, _ := json.Marshal(payload)

	rec, err := m.records.CreateReceipt(ctx, records.Receipt{
		CustomerID:  cust.ID,
		CallID:      callID,
		Amount:      amount,
		Description: description,
		RequestData: string(requestData),
	})
	if err != nil {
		m.log.Error("receipt insert failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}

	res, err := m.gateway.CreateReceipt(ctx, payload)
	if err != nil {
		m.log.Error("gateway create misuse", "call_id", callID, "error", err)
		return systemErrorMenu()
	}

	if !res.OK {
		m.log.Warn("receipt rejected by gateway", "call_id", callID, "receipt_id", rec.ID, "message", res.Message)
		if err := m.records.UpdateReceiptOutcome(ctx, rec.ID, records.ReceiptFailed, "", "", res.Raw); err != nil {
			m.log.Error("receipt outcome update failed", "call_id", callID, "receipt_id", rec.ID, "error", err)
		}
		return receiptFailedMenu()
	}

	// The billing document exists; a failed local update must not turn the
	// caller's success into an error.
	if err := m.records.UpdateReceiptOutcome(ctx, rec.ID, records.ReceiptCompleted, res.DocID, res.DocNum, res.Raw); err != nil {
		m.log.Error("receipt outcome update failed", "call_id", callID, "receipt_id", rec.ID, "error", err)
	}
	m.log.Info("receipt created", "call_id", callID, "receipt_id", rec.ID, "doc_num", res.DocNum)
	return receiptSuccessMenu(res.DocNum)
}

// cancelReceipt acknowledges the request unconditionally; the gateway cancel
// is attempted inline but its outcome only affects the log, the caller is
// told the cancellation will be handled either way.
func (m *Machine) cancelReceipt(ctx context.Context, callID, receiptNum string) Response {
	res, err := m.gateway.CancelReceipt(ctx, receiptNum)
	switch {
	case err != nil:
		m.log.Warn("gateway cancel misuse", "call_id", callID, "doc_id", receiptNum, "error", err)
	case !res.OK:
		m.log.Warn("gateway cancel rejected", "call_id", callID, "doc_id", receiptNum, "message", res.Message)
	default:
		m.log.Info("receipt cancelled at gateway", "call_id", callID, "doc_id", receiptNum)
	}
	return cancelResultMenu(receiptNum)
}

func (m *Machine) childrenCount(ctx context.Context, callID, value string) Response {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > 20 {
		return systemErrorMenu()
	}
	if err := m.sessions.Merge(ctx, callID, map[string]string{
		"children_count": strconv.Itoa(n),
		"current_child":  "1",
	}); err != nil {
		m.log.Error("session merge failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}
	if n == 0 {
		return spouseWorkplacesPrompt(1)
	}
	return childBirthYearPrompt(1)
}

// childBirthYear stores year k under its indexed session key, which the
// initial merge in HandleInput already did, so a replayed webhook for the
// same child overwrites instead of appending.
func (m *Machine) childBirthYear(ctx context.Context, callID, name, value string) Response {
	k, err := strconv.Atoi(strings.TrimPrefix(name, "child_birth_year_"))
	if err != nil || k < 1 {
		m.log.Warn("malformed child year input", "call_id", callID, "input", name)
		return mainMenu()
	}

	year, err := strconv.Atoi(value)
	currentYear := m.clock().Year()
	if err != nil || year < currentYear-50 || year > currentYear {
		return systemErrorMenu()
	}

	sess, err := m.sessions.Get(ctx, callID)
	if err != nil {
		m.log.Error("session read failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}
	total, _ := strconv.Atoi(sess["children_count"])
	if k < total {
		if err := m.sessions.Merge(ctx, callID, map[string]string{"current_child": strconv.Itoa(k + 1)}); err != nil {
			m.log.Error("session merge failed", "call_id", callID, "error", err)
			return systemErrorMenu()
		}
		return childBirthYearPrompt(k + 1)
	}
	return spouseWorkplacesPrompt(1)
}

func (m *Machine) spouseWorkplaces(ctx context.Context, callID, name, value string) Response {
	w, err := strconv.Atoi(value)
	if err != nil || w < 0 || w > 10 {
		return systemErrorMenu()
	}
	if name == "spouse1_workplaces" {
		return spouseWorkplacesPrompt(2)
	}
	return m.finalizeDetails(ctx, callID)
}

// finalizeDetails overwrites the stored details from the session. The update
// is all-or-nothing: if any collected piece is missing the journey's data is
// discarded rather than half-written.
func (m *Machine) finalizeDetails(ctx context.Context, callID string) Response {
	sess, err := m.sessions.Get(ctx, callID)
	if err != nil {
		m.log.Error("session read failed", "call_id", callID, "error", err)
		return systemErrorMenu()
	}

	cust, ok := m.resolveCustomer(ctx, callID)
	if !ok {
		return systemErrorMenu()
	}

	total, err := strconv.Atoi(sess["children_count"])
	if err != nil || total < 0 {
		m.log.Warn("details finalize without children count", "call_id", callID)
		return systemErrorMenu()
	}
	years := make([]int, 0, total)
	for i := 1; i <= total; i++ {
		year, err := strconv.Atoi(sess["child_birth_year_"+strconv.Itoa(i)])
		if err != nil {
			m.log.Warn("details finalize with missing child year", "call_id", callID, "child", i)
			return systemErrorMenu()
		}
		years = append(years, year)
	}
	spouse1, _ := strconv.Atoi(sess["spouse1_workplaces"])
	spouse2, _ := strconv.Atoi(sess["spouse2_workplaces"])

	det := customer.Details{
		CustomerID:         cust.ID,
		NumChildren:        total,
		ChildrenBirthYears: years,
		Spouse1Workplaces:  spouse1,
		Spouse2Workplaces:  spouse2,
	}
	if err := m.directory.UpsertDetails(ctx, det); err != nil {
		m.log.Error("details upsert failed", "call_id", callID, "customer_id", cust.ID, "error", err)
		return systemErrorMenu()
	}
	m.log.Info("details updated", "call_id", callID, "customer_id", cust.ID, "children", total)
	return detailsUpdatedMenu()
}

func (m *Machine) showBenefits(ctx context.Context, callID string) Response {
	summary, redirect := m.benefitsSummary(ctx, callID)
	if redirect != nil {
		return redirect
	}
	return benefitsMenu(summary.WorkBenefit, summary.BirthBenefit)
}

func (m *Machine) benefitsChoice(ctx context.Context, callID, choice string) Response {
	if choice != "1" {
		return mainMenu()
	}
	summary, redirect := m.benefitsSummary(ctx, callID)
	if redirect != nil {
		return redirect
	}
	return benefitsDetailsMenu(summary.WorkBenefit, summary.BirthBenefit, summary.Total)
}

// benefitsSummary computes the caller's entitlements, or returns the menu to
// answer with instead. A customer with no details on file is sent to the
// collection journey; there is nothing to calculate from yet.
func (m *Machine) benefitsSummary(ctx context.Context, callID string) (benefits.Summary, Response) {
	cust, ok := m.resolveCustomer(ctx, callID)
	if !ok {
		return benefits.Summary{}, systemErrorMenu()
	}
	det, found, err := m.directory.GetDetails(ctx, cust.ID)
	if err != nil {
		m.log.Error("details lookup failed", "call_id", callID, "customer_id", cust.ID, "error", err)
		return benefits.Summary{}, systemErrorMenu()
	}
	if !found {
		m.log.Info("no details on file for benefits", "call_id", callID, "customer_id", cust.ID)
		return benefits.Summary{}, numChildrenPrompt()
	}
	return m.benefits.Calculate(det), nil
}

func (m *Machine) customerMessage(ctx context.Context, callID, recording string) Response {
	if recording == "" {
		return messageReceivedMenu()
	}
	cust, ok := m.resolveCustomer(ctx, callID)
	if !ok {
		return systemErrorMenu()
	}
	msg, err := m.records.SaveMessage(ctx, records.Message{
		CustomerID:         cust.ID,
		CallID:             callID,
		RecordingReference: recording,
	})
	if err != nil {
		m.log.Error("message save failed", "call_id", callID, "customer_id", cust.ID, "error", err)
		return systemErrorMenu()
	}
	m.log.Info("message saved", "call_id", callID, "message_id", msg.ID)
	return messageReceivedMenu()
}

// annualReportChoice records a request for the previous calendar year's
// report. Repeating the request within a call, or across calls in the same
// year, re-queues the same row rather than duplicating it.
func (m *Machine) annualReportChoice(ctx context.Context, callID, choice string) Response {
	if choice != "1" {
		return mainMenu()
	}
	cust, ok := m.resolveCustomer(ctx, callID)
	if !ok {
		return systemErrorMenu()
	}
	year := m.clock().Year() - 1
	req, err := m.records.RequestAnnualReport(ctx, cust.ID, year)
	if err != nil {
		m.log.Error("report request failed", "call_id", callID, "customer_id", cust.ID, "error", err)
		return systemErrorMenu()
	}
	m.log.Info("annual report requested", "call_id", callID, "customer_id", cust.ID, "year", req.Year)
	return reportRequestedMenu()
}

func (m *Machine) retryChoice(choice string, retry Response) Response {
	if choice == "1" {
		return retry
	}
	return mainMenu()
}

// resolveCustomer finds the caller's customer row via the phone number seeded
// into the session at call entry.
func (m *Machine) resolveCustomer(ctx context.Context, callID string) (customer.Customer, bool) {
	sess, err := m.sessions.Get(ctx, callID)
	if err != nil {
		m.log.Error("session read failed", "call_id", callID, "error", err)
		return customer.Customer{}, false
	}
	phone := sess["PBXphone"]
	if phone == "" {
		m.log.Warn("no phone in session", "call_id", callID)
		return customer.Customer{}, false
	}
	cust, found, err := m.directory.FindByPhone(ctx, phone)
	if err != nil {
		m.log.Error("customer lookup failed", "call_id", callID, "error", err)
		return customer.Customer{}, false
	}
	if !found {
		m.log.Warn("no customer for session phone", "call_id", callID)
		return customer.Customer{}, false
	}
	return cust, true
}

func (m *Machine) today() time.Time {
	return m.clock().UTC().Truncate(24 * time.Hour)
}

func setField(dst map[string]string, key, value string) {
	if value != "" {
		dst[key] = value
	}
}
