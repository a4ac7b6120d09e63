package models

import "time"

// SecurityAlert is the alerting service's view of one security alert.
type SecurityAlert struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Category      string      `json:"category"`
	Description   string      `json:"description"`
	EventDateTime *time.Time  `json:"eventDateTime,omitempty"`
	Severity      string      `json:"severity"`
	UserStates    []UserState `json:"userStates,omitempty"`
}

// UserState is per-user context attached to a security alert.
type UserState struct {
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	DomainName        string `json:"domainName,omitempty"`
	LogonLocation     string `json:"logonLocation,omitempty"`
}

// RiskDetection is one flagged identity risk event.
type RiskDetection struct {
	ID                string    `json:"id"`
	RiskEventType     string    `json:"riskEventType"`
	Activity          string    `json:"activity"`
	ActivityDateTime  time.Time `json:"activityDateTime"`
	IPAddress         string    `json:"ipAddress"`
	Source            string    `json:"source"`
	AdditionalInfo    string    `json:"additionalInfo"`
	UserID            string    `json:"userId"`
	UserDisplayName   string    `json:"userDisplayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
}

// RiskyUser is the aggregated risk state of one user.
type RiskyUser struct {
	ID                string `json:"id"`
	RiskLevel         string `json:"riskLevel"`
	RiskDetail        string `json:"riskDetail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// AlertDetails is the flattened, enriched view of one risk alert. It is built
// once per notification and never shared across alerts.
type AlertDetails struct {
	UserDisplayName    string     `json:"userDisplayName"`
	Username           string     `json:"username"`
	UserID             string     `json:"userId"`
	UserRiskLevel      string     `json:"userRiskLevel,omitempty"`
	UserRiskDetails    string     `json:"userRiskDetails,omitempty"`
	UserRiskReportID   string     `json:"userRiskReportId,omitempty"`
	AlertTitle         string     `json:"alertTitle"`
	AlertCategory      string     `json:"alertCategory"`
	AlertDescription   string     `json:"alertDescription"`
	AlertEventDateTime *time.Time `json:"alertEventDateTime,omitempty"`
	AlertSeverity      string     `json:"alertSeverity,omitempty"`
	Activity           string     `json:"activity,omitempty"`
	IPAddress          string     `json:"ipAddress"`
	Location           string     `json:"location"`
	RiskEventType      string     `json:"riskEventType"`
	Source             string     `json:"source"`
	AdditionalInfo     string     `json:"additionalInfo"`
}

// RiskHistoryCounts summarizes prior risk detections for the same user,
// excluding the alert currently being processed.
type RiskHistoryCounts struct {
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
	Total     int `json:"total"`
}
