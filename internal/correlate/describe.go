package correlate

import (
	"fmt"
	"strings"

	"idpmon/pkg/models"
)

const riskReportURLBase = "https://portal.azure.com/#blade/Microsoft_AAD_IAM/RiskyUsersBlade/userId/"

// BuildTicketDescription renders a ticket or note description from the alert
// details. Related ticket numbers and the footer are appended when present.
func BuildTicketDescription(intro string, d models.AlertDetails, relatedTickets []string, footer string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", intro)
	fmt.Fprintf(&b, "Type: %s [%s / %s]\n", d.AlertTitle, d.AlertCategory, d.RiskEventType)
	fmt.Fprintf(&b, "Triggered by: %s (Severity: %s)\n", d.Activity, d.AlertSeverity)
	fmt.Fprintf(&b, "Description: %s\n\n", d.AlertDescription)
	fmt.Fprintf(&b, "User: %s (%s)", d.UserDisplayName, d.Username)

	if d.UserRiskLevel != "" && d.UserRiskDetails != "" {
		fmt.Fprintf(&b, "\nUsers Risk Level: %s", d.UserRiskLevel)
		if d.UserRiskDetails != "None" {
			fmt.Fprintf(&b, " (%s)", d.UserRiskDetails)
		}
	}

	fmt.Fprintf(&b, "\nLogon Location: %s (IP: %s)", d.Location, d.IPAddress)
	if d.AlertEventDateTime != nil {
		fmt.Fprintf(&b, "\nWhen: %s", d.AlertEventDateTime.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "\n\nAlert Source: %s", d.Source)
	fmt.Fprintf(&b, "\nAdditional Info: %s", d.AdditionalInfo)

	if d.UserRiskReportID != "" && d.UserRiskReportID != "None" {
		fmt.Fprintf(&b, "\nUser Risk Details: %s%s", riskReportURLBase, d.UserRiskReportID)
	}

	var related []string
	for _, num := range relatedTickets {
		if num != "" {
			related = append(related, num)
		}
	}
	if len(related) > 0 {
		fmt.Fprintf(&b, "\nRelated Tickets: %s", strings.Join(related, ", "))
	}

	if footer != "" {
		fmt.Fprintf(&b, "\n\n%s", footer)
	}

	return b.String()
}

// HistoryFooter summarizes prior risk detections for the ticket description.
// A nil history yields no footer.
func HistoryFooter(counts *models.RiskHistoryCounts) string {
	if counts == nil {
		return ""
	}
	if counts.LastWeek == 0 && counts.LastMonth == 0 && counts.Total == 0 {
		return "No previous risk detections were found!"
	}
	return fmt.Sprintf("Other Risk Detections Alerts in the last:\nWeek: %d\nMonth: %d\nTotal: %d",
		counts.LastWeek, counts.LastMonth, counts.Total)
}
