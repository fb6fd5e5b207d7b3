package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/domain"
)

// Rendering is deterministic string assembly from snapshot data. The subject
// and body are frozen into the campaign recipient, so later invoice edits
// never change an in-flight reminder.

func formatAmount(amountMinor int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(amountMinor)/100.0, currency)
}

func renderIndividualEmail(customerName string, invoice *core_domain.Invoice, today time.Time) (subject, body string) {
	daysOverdue := domain.DaysOverdue(invoice.DueDate, today)
	amount := formatAmount(invoice.AmountMinor, invoice.Currency)

	if daysOverdue > 0 {
		subject = fmt.Sprintf("Payment reminder: invoice %s is %d days overdue", invoice.Number, daysOverdue)
	} else {
		subject = fmt.Sprintf("Payment reminder: invoice %s is due soon", invoice.Number)
	}

	var b strings.Builder
	greeting := "Hello,"
	if customerName != "" {
		greeting = fmt.Sprintf("Hello %s,", customerName)
	}
	fmt.Fprintf(&b, "<p>%s</p>", greeting)
	if daysOverdue > 0 {
		fmt.Fprintf(&b, "<p>Invoice %s for %s was due on %s and is now %d days overdue.</p>",
			invoice.Number, amount, invoice.DueDate.Format("2 January 2006"), daysOverdue)
	} else {
		fmt.Fprintf(&b, "<p>Invoice %s for %s is due on %s.</p>",
			invoice.Number, amount, invoice.DueDate.Format("2 January 2006"))
	}
	b.WriteString("<p>Please arrange payment at your earliest convenience.</p>")
	return subject, b.String()
}

func renderConsolidatedEmail(candidate *domain.Candidate, invoices []*core_domain.Invoice) (subject, body string) {
	total := formatAmount(candidate.TotalAmountMinor, candidate.Currency)
	subject = fmt.Sprintf("Payment reminder: %d outstanding invoices totalling %s", candidate.InvoiceCount, total)

	var b strings.Builder
	greeting := "Hello,"
	if candidate.CustomerName != "" {
		greeting = fmt.Sprintf("Hello %s,", candidate.CustomerName)
	}
	fmt.Fprintf(&b, "<p>%s</p>", greeting)
	fmt.Fprintf(&b, "<p>You have %d outstanding invoices totalling %s:</p>", candidate.InvoiceCount, total)
	b.WriteString("<ul>")
	for _, inv := range invoices {
		fmt.Fprintf(&b, "<li>Invoice %s, %s, due %s</li>",
			inv.Number, formatAmount(inv.AmountMinor, inv.Currency), inv.DueDate.Format("2 January 2006"))
	}
	b.WriteString("</ul>")
	b.WriteString("<p>Please arrange payment at your earliest convenience.</p>")
	return subject, b.String()
}
