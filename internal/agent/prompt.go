package agent

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

var printer = message.NewPrinter(language.English)

const guidelines = `Severity Guidelines:
- LOW: Minor claims < $5,000 with low risk
- MEDIUM: Claims $5,000-$25,000 with moderate risk
- HIGH: Claims $25,000-$75,000 or concerning risk factors
- CRITICAL: Claims > $75,000 or multiple high-risk factors

Action Guidelines:
- APPROVE: Low-risk claims within policy limits from good-standing customers
- INVESTIGATE: Medium-high risk claims or unusual circumstances
- DENY: Claims outside policy coverage or clear fraud indicators
- ESCALATE: Critical claims or complex cases requiring human expertise`

const answerFormat = `Respond in this format:
SEVERITY: [level]
ACTION: [action]
RATIONALE: [explanation]`

func buildSystemPrompt() string {
	return `You are an expert insurance claims adjuster. You assess insurance claims and decide how each one should be processed.

For each claim:
1. Look up the policy information using the policy_lookup tool
2. Calculate the risk score using the risk_scoring tool
3. Analyze the claim narrative, amount, and all available information
4. Determine the severity level (low, medium, high, critical)
5. Decide on the recommended action (approve, investigate, deny, escalate)
6. Log your decision using the triage_logger tool
7. Finish with your final answer

` + guidelines + `

Always give a clear rationale based on the claim details, policy information, and risk assessment.

` + answerFormat
}

func buildInitialPrompt(c *claim.Claim) string {
	var b strings.Builder
	b.WriteString("Process the following insurance claim:\n\n")
	writeClaimDetails(&b, c)
	b.WriteString(`
Please assess this claim and provide:
1. Severity level (low/medium/high/critical)
2. Recommended action (approve/investigate/deny/escalate)
3. Detailed rationale for your decision

Use the available tools to gather information and make an informed decision.`)
	return b.String()
}

func buildOneShotPrompt(c *claim.Claim) string {
	var b strings.Builder
	b.WriteString(`You are an insurance claims adjuster. Analyze the following claim and provide:
1. Severity level (low/medium/high/critical)
2. Recommended action (approve/investigate/deny/escalate)
3. Brief rationale

`)
	writeClaimDetails(&b, c)
	b.WriteString("\n" + guidelines + "\n\n" + answerFormat)
	return b.String()
}

func writeClaimDetails(b *strings.Builder, c *claim.Claim) {
	amount, _ := c.Amount.Float64()
	fmt.Fprintf(b, "Claim ID: %s\n", c.ID)
	fmt.Fprintf(b, "Policy ID: %s\n", c.PolicyID)
	if c.Type != "" {
		fmt.Fprintf(b, "Claim Type: %s\n", c.Type)
	}
	b.WriteString(printer.Sprintf("Claim Amount: $%.2f\n", amount))
	fmt.Fprintf(b, "Incident Date: %s\n", c.IncidentDate)
	fmt.Fprintf(b, "Report Date: %s\n", c.ReportDate)
	fmt.Fprintf(b, "Days to Report: %d\n", c.ReportingDelayDays())
	if c.Location != "" {
		fmt.Fprintf(b, "Location: %s\n", c.Location)
	}
	if c.ClaimantAge > 0 {
		fmt.Fprintf(b, "Claimant Age: %d\n", c.ClaimantAge)
	}
	fmt.Fprintf(b, "Prior Claims: %d\n", c.PriorClaims)
	if c.Narrative != "" {
		fmt.Fprintf(b, "\nClaim Narrative:\n%s\n", c.Narrative)
	}
}
