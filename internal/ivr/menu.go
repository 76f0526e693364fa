package ivr

import (
	"fmt"
	"time"
)

// The PBX accepts exactly three instruction shapes. Each response is a fixed
// struct serialized at the HTTP boundary; the flow code never builds free-form
// maps.

// File is one prompt the PBX plays, with the keys active while it plays.
type File struct {
	Text          string `json:"text"`
	ActivatedKeys string `json:"activatedKeys"`
}

// Response is a menu instruction returned to the PBX.
type Response interface {
	// MenuName is the input name the PBX will echo the caller's choice under.
	MenuName() string
}

// SimpleMenu plays prompts and waits for a single key press.
type SimpleMenu struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Times       int    `json:"times"`
	Timeout     int    `json:"timeout"`
	EnabledKeys string `json:"enabledKeys"`
	SetMusic    string `json:"setMusic,omitempty"`
	Files       []File `json:"files"`
}

func (m SimpleMenu) MenuName() string { return m.Name }

// GetDTMF collects a digit string of bounded length.
type GetDTMF struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Max         int    `json:"max"`
	Min         int    `json:"min"`
	Timeout     int    `json:"timeout"`
	ConfirmType string `json:"confirmType"`
	SetMusic    string `json:"setMusic,omitempty"`
	SkipKey     string `json:"skipKey,omitempty"`
	SkipValue   string `json:"skipValue,omitempty"`
	Files       []File `json:"files"`
}

func (m GetDTMF) MenuName() string { return m.Name }

// Record asks the PBX to record the caller and report back a file reference.
type Record struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Max      int    `json:"max"`
	Min      int    `json:"min"`
	Confirm  string `json:"confirm"`
	FileName string `json:"fileName"`
	Files    []File `json:"files"`
}

func (m Record) MenuName() string { return m.Name }

// Sentinel values the PBX substitutes for skipped prompts.
const (
	skipSentinel          = "SKIP"
	noDescriptionSentinel = "NO_DESCRIPTION"

	defaultReceiptDescription = "Receipt"

	allDigits = "1,2,3,4,5,6,7,8,9,0"
)

func newCustomerMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "newCustomer",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "1,2",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Hello and welcome. It looks like you do not have a subscription yet. Press 1 to join, or press 2 to return to the previous menu.",
			ActivatedKeys: "1,2",
		}},
	}
}

func renewSubscriptionMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "renewSubscription",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "1,2",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Your subscription has expired. Press 1 to renew it, or press 2 to return to the previous menu.",
			ActivatedKeys: "1,2",
		}},
	}
}

func renewalConfirmMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "renewalConfirm",
		Times:       1,
		Timeout:     15,
		EnabledKeys: "1,2",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Subscription renewal costs 120 shekels per year. Press 1 to confirm or 2 to cancel.",
			ActivatedKeys: "1,2",
		}},
	}
}

func renewalSuccessMenu(until time.Time) Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "renewalSuccess",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "0",
		Files: []File{{
			Text:          fmt.Sprintf("Your subscription was renewed successfully and is valid until %s. Press 0 to return to the main menu.", until.Format("02/01/2006")),
			ActivatedKeys: "0",
		}},
	}
}

func mainMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "mainMenu",
		Times:       3,
		Timeout:     15,
		EnabledKeys: "1,2,3,4,5,6,0",
		SetMusic:    "yes",
		Files: []File{{
			Text:          "Hello and welcome to our services. Press 1 to issue a receipt, 2 to cancel a receipt, 3 to update personal details, 4 to hear your benefits, 5 to leave a message, 6 to request an annual report, or 0 to repeat.",
			ActivatedKeys: "1,2,3,4,5,6,0",
		}},
	}
}

func receiptAmountPrompt() Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        "receiptAmount",
		Max:         6,
		Min:         1,
		Timeout:     30,
		ConfirmType: "digits",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Please enter the receipt amount in shekels.",
			ActivatedKeys: allDigits,
		}},
	}
}

func receiptDescriptionPrompt(amount int) Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        "receiptDescription",
		Max:         20,
		Min:         1,
		Timeout:     30,
		ConfirmType: "digits",
		SetMusic:    "no",
		SkipKey:     "#",
		SkipValue:   noDescriptionSentinel,
		Files: []File{{
			Text:          fmt.Sprintf("The amount entered is %d shekels. Please enter a description code, or press pound to skip.", amount),
			ActivatedKeys: allDigits + ",#",
		}},
	}
}

func invalidAmountMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "invalidAmount",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "1,0",
		Files: []File{{
			Text:          "Invalid amount. Press 1 to try again or 0 to return to the main menu.",
			ActivatedKeys: "1,0",
		}},
	}
}

func receiptSuccessMenu(docNum string) Response {
	if docNum == "" {
		docNum = "unavailable"
	}
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "receiptSuccess",
		Times:       1,
		Timeout:     15,
		EnabledKeys: "0",
		Files: []File{{
			Text:          fmt.Sprintf("The receipt was created successfully. Receipt number: %s. Press 0 to return to the main menu.", docNum),
			ActivatedKeys: "0",
		}},
	}
}

func receiptFailedMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "receiptFailed",
		Times:       1,
		Timeout:     15,
		EnabledKeys: "1,0",
		Files: []File{{
			Text:          "Creating the receipt failed. Press 1 to try again or 0 to return to the main menu.",
			ActivatedKeys: "1,0",
		}},
	}
}

func cancelReceiptPrompt() Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        "cancelReceiptId",
		Max:         10,
		Min:         1,
		Timeout:     30,
		ConfirmType: "digits",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Please enter the number of the receipt to cancel.",
			ActivatedKeys: allDigits,
		}},
	}
}

func cancelResultMenu(receiptNum string) Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "cancelResult",
		Times:       1,
		Timeout:     15,
		EnabledKeys: "0",
		Files: []File{{
			Text:          fmt.Sprintf("Your request to cancel receipt number %s was received and will be handled within 24 hours. Press 0 to return to the main menu.", receiptNum),
			ActivatedKeys: "0",
		}},
	}
}

func numChildrenPrompt() Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        "numChildren",
		Max:         2,
		Min:         1,
		Timeout:     20,
		ConfirmType: "number",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Please enter the number of children.",
			ActivatedKeys: allDigits,
		}},
	}
}

func childBirthYearPrompt(k int) Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        fmt.Sprintf("child_birth_year_%d", k),
		Max:         4,
		Min:         4,
		Timeout:     20,
		ConfirmType: "number",
		SetMusic:    "no",
		Files: []File{{
			Text:          fmt.Sprintf("Please enter the birth year of child number %d, four digits.", k),
			ActivatedKeys: allDigits,
		}},
	}
}

func spouseWorkplacesPrompt(spouse int) Response {
	ordinal := "first"
	if spouse == 2 {
		ordinal = "second"
	}
	return GetDTMF{
		Type:        "getDTMF",
		Name:        fmt.Sprintf("spouse%d_workplaces", spouse),
		Max:         2,
		Min:         1,
		Timeout:     20,
		ConfirmType: "number",
		SetMusic:    "no",
		Files: []File{{
			Text:          fmt.Sprintf("Please enter the number of workplaces of the %s spouse.", ordinal),
			ActivatedKeys: allDigits,
		}},
	}
}

func detailsUpdatedMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "detailsUpdated",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "Your details were updated successfully. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}

func benefitsMenu(workBenefit, birthBenefit float64) Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "benefitsMenu",
		Times:       1,
		Timeout:     30,
		EnabledKeys: "1,0",
		SetMusic:    "no",
		Files: []File{{
			Text:          fmt.Sprintf("Based on your details, you are entitled to a work benefit of %.0f shekels and a birth benefit of %.0f shekels. Press 1 for more details or 0 to return to the main menu.", workBenefit, birthBenefit),
			ActivatedKeys: "1,0",
		}},
	}
}

func benefitsDetailsMenu(workBenefit, birthBenefit, total float64) Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "benefitsDetails",
		Times:       1,
		Timeout:     30,
		EnabledKeys: "0",
		SetMusic:    "no",
		Files: []File{{
			Text:          fmt.Sprintf("Work benefit: %.0f shekels. Birth benefit: %.0f shekels. Total entitlement: %.0f shekels. Press 0 to return to the main menu.", workBenefit, birthBenefit, total),
			ActivatedKeys: "0",
		}},
	}
}

func leaveMessagePrompt(now time.Time) Response {
	return Record{
		Type:     "record",
		Name:     "customerMessage",
		Max:      180,
		Min:      3,
		Confirm:  "confirmOnly",
		FileName: "message_" + now.Format("20060102_150405"),
		Files: []File{{
			Text:          "Please leave your message after the beep. Press pound to finish the recording.",
			ActivatedKeys: "NONE",
		}},
	}
}

func messageReceivedMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "messageReceived",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "Your message was received. We will get back to you within 48 hours. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}

func annualReportMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "annualReport",
		Times:       1,
		Timeout:     15,
		EnabledKeys: "1,0",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Your annual report will be sent to you by SMS within 24 hours. Press 1 to confirm or 0 to cancel.",
			ActivatedKeys: "1,0",
		}},
	}
}

func reportRequestedMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "reportRequested",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "Your report request was received. The report will be sent to you by SMS within 24 hours. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}

func newCustomerIDPrompt() Response {
	return GetDTMF{
		Type:        "getDTMF",
		Name:        "newCustomerID",
		Max:         10,
		Min:         9,
		Timeout:     30,
		ConfirmType: "digits",
		SetMusic:    "no",
		Files: []File{{
			Text:          "Please enter your identification number.",
			ActivatedKeys: allDigits,
		}},
	}
}

func registrationFailMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "registrationFail",
		Times:       1,
		Timeout:     7,
		EnabledKeys: "1,0",
		Files: []File{{
			Text:          "Registration failed. Press 1 to try again or 0 to return to the main menu.",
			ActivatedKeys: "1,0",
		}},
	}
}

func invalidChoiceMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "invalidChoice",
		Times:       1,
		Timeout:     5,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "Invalid choice. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}

func noInputMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "invalidChoice",
		Times:       1,
		Timeout:     5,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "No choice was received. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}

func systemErrorMenu() Response {
	return SimpleMenu{
		Type:        "simpleMenu",
		Name:        "systemError",
		Times:       1,
		Timeout:     10,
		EnabledKeys: "0",
		Files: []File{{
			Text:          "A system error occurred. Press 0 to return to the main menu.",
			ActivatedKeys: "0",
		}},
	}
}
