package flow

import (
	"fmt"
	"strings"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/payment"
)

// User-facing copy. Plain-text fallbacks always name the textual
// command so channels without buttons stay fully usable.
const (
	msgTransient          = "Something went wrong on our side. Please try again in a moment."
	msgHelp               = "Commands:\nmenu - browse events and buy tickets\ntickets - list your purchased tickets\nticket N - resend ticket number N\nverify - check a pending payment\ncancel - abort the current purchase\nhelp - this message"
	msgCancelled          = "Purchase cancelled. Send \"menu\" whenever you want to start again."
	msgNoEvents           = "No events are on sale right now. Check back soon!"
	msgInvalidEvent       = "That event number does not exist. Pick one from the list."
	msgInvalidCategory    = "That category number does not exist. Pick one from the list."
	msgInvalidQuantity    = "Please send how many tickets you want, for example 2."
	msgEventGone          = "Sorry, that event is no longer on sale. Send \"menu\" to see what is available."
	msgCategorySoldOut    = "Sorry, %s is sold out. Pick another category or send \"cancel\"."
	msgShortfall          = "Only %d ticket(s) left in this category. Send a smaller quantity or \"cancel\"."
	msgGatewayDown        = "The payment service is unreachable right now. Please try again in a few minutes."
	msgNothingToVerify    = "You have no payment in progress. Send \"menu\" to buy tickets."
	msgBadReference       = "That payment reference does not match your current purchase."
	msgIssueRetry         = "Your payment is confirmed but we hit a snag while creating your tickets. Send \"verify\" to retry; you will not be charged again."
	msgSoldOutPaid        = "Your payment went through but the tickets sold out before we could reserve yours. Please contact support with reference %s for a refund."
	msgAlreadyPaid        = "Payment %s is already confirmed and your tickets were sent. Send \"tickets\" to see them."
	msgIssued             = "Payment confirmed! Your %d ticket(s) are on their way. Reference: %s"
	msgPurchaseInProgress = "You already have a purchase in progress. Finish it or send \"cancel\" first."
	msgTicketNotFound     = "No ticket with that number. Send \"tickets\" to see the list."
	msgTicketSent         = "Ticket %s sent again."
)

func msgWelcome(name string) string {
	greeting := "Welcome"
	if name != "" {
		greeting = "Welcome, " + name
	}
	return greeting + "! Send \"menu\" to see the events on sale, or \"help\" for all commands."
}

// rePrompt restates what the machine expects at the given step. Used
// whenever input does not fit the step.
func rePrompt(step model.Step) string {
	switch step {
	case model.StepChoosingEvent:
		return "Please send the number of the event you want."
	case model.StepChoosingCategory:
		return "Please send the number of the ticket category you want."
	case model.StepChoosingQuantity:
		return "Please send how many tickets you want."
	case model.StepConfirming:
		return "Send \"oui\" to confirm your purchase or \"cancel\" to abort."
	case model.StepAwaitingPayment:
		return "Your payment link is waiting. Pay, then send \"verify\", or send \"cancel\" to abort."
	default:
		return "Send \"menu\" to buy tickets or \"help\" for all commands."
	}
}

// formatPrice renders an amount in Guinean francs. Prices are stored
// as whole francs; the currency has no minor unit.
func formatPrice(amount uint64) string {
	return fmt.Sprintf("%d GNF", amount)
}

func eventListReply(events []model.Event) Reply {
	var b strings.Builder
	b.WriteString("Events on sale:\n")
	buttons := make([]Button, 0, len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "\n%d. %s\n   %s | %s | %s", ev.ID, ev.Name, ev.Date, ev.Location, ev.Organizer)
		buttons = append(buttons, Button{
			Label: ev.Name,
			Data:  fmt.Sprintf("%s%d", CallbackSelectEvent, ev.ID),
		})
	}
	b.WriteString("\n\nSend the number of the event you want.")
	return Reply{Text: b.String(), Buttons: buttons}
}

func categoryListReply(ev *model.Event) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nCategories:\n", ev.Name)
	buttons := make([]Button, 0, len(ev.Categories))
	for i, cat := range ev.Categories {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, cat.Name, formatPrice(cat.UnitPrice))
		if cat.Remaining < 1 {
			b.WriteString(" (sold out)")
			continue
		}
		buttons = append(buttons, Button{
			Label: fmt.Sprintf("%s - %s", cat.Name, formatPrice(cat.UnitPrice)),
			Data:  fmt.Sprintf("%s%d:%d", CallbackSelectCategory, ev.ID, i+1),
		})
	}
	b.WriteString("\n\nSend the number of the category you want.")
	return Reply{Text: b.String(), Buttons: buttons}
}

func quantityReply(cat *model.Category) Reply {
	buttons := make([]Button, 0, 4)
	for n := 1; n <= 4 && int32(n) <= cat.Remaining; n++ {
		buttons = append(buttons, Button{
			Label: fmt.Sprintf("%d", n),
			Data:  fmt.Sprintf("%s%d", CallbackSelectQuantity, n),
		})
	}
	text := fmt.Sprintf("%s at %s each. How many tickets do you want?", cat.Name, formatPrice(cat.UnitPrice))
	return Reply{Text: text, Buttons: buttons}
}

func recapReply(sess *model.Session) Reply {
	text := fmt.Sprintf(
		"Your order:\nEvent: %s\nCategory: %s\nQuantity: %d\nUnit price: %s\nTotal: %s\n\nSend \"oui\" to confirm or \"cancel\" to abort.",
		sess.EventName, sess.CategoryName, sess.Quantity,
		formatPrice(sess.UnitPrice), formatPrice(sess.TotalPrice),
	)
	return Reply{Text: text, Buttons: []Button{
		{Label: "Confirm", Data: CallbackConfirm},
		{Label: "Cancel", Data: CallbackCancel},
	}}
}

func payReply(init *payment.Initiation) Reply {
	text := fmt.Sprintf(
		"Pay %s here:\n%s\n\nReference: %s\nAfter paying, send \"verify\". We also check automatically and will message you as soon as the payment lands.",
		init.AmountFormatted, init.PayURL, init.Reference,
	)
	return Reply{Text: text, Buttons: []Button{
		{Label: "Pay now", URL: init.PayURL},
		{Label: "I have paid", Data: CallbackCheckPayment + init.Reference},
		{Label: "Cancel", Data: CallbackCancel},
	}}
}

func pendingReply(description, reference string) Reply {
	text := "Your payment is still pending."
	if description != "" {
		text = fmt.Sprintf("Your payment is still pending (%s).", description)
	}
	text += " We will keep checking; you can also send \"verify\" again in a moment."
	return Reply{Text: text, Buttons: []Button{
		{Label: "Check again", Data: CallbackCheckPayment + reference},
		{Label: "Cancel", Data: CallbackCancel},
	}}
}

func failedReply(status *payment.Status, payURL, reference string) Reply {
	detail := ""
	if status != nil {
		if status.ErrorMessage != "" {
			detail = " (" + status.ErrorMessage + ")"
		} else if status.Description != "" {
			detail = " (" + status.Description + ")"
		}
	}
	text := fmt.Sprintf("Your payment did not go through%s. You can pay again with the same link:\n%s", detail, payURL)
	return Reply{Text: text, Buttons: []Button{
		{Label: "Pay now", URL: payURL},
		{Label: "I have paid", Data: CallbackCheckPayment + reference},
		{Label: "Cancel", Data: CallbackCancel},
	}}
}

func ticketListReply(tickets []model.Ticket) Reply {
	if len(tickets) == 0 {
		return textReply("You have no tickets yet. Send \"menu\" to buy some!")
	}
	var b strings.Builder
	b.WriteString("Your tickets:\n")
	for i, t := range tickets {
		fmt.Fprintf(&b, "\n%d. %s - %s (%s)\n   Code: %s", i+1, t.EventName, t.CategoryName, t.FormattedID, t.QRCode)
	}
	b.WriteString("\n\nSend \"ticket N\" to receive one again.")
	return textReply(b.String())
}
