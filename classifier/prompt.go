package classifier

import (
	"github.com/MakeNowJust/heredoc/v2"
)

var systemPrompt = "You are a security analyst. You assess the risk of operations and produce an execution plan."

var analysisPrompt = heredoc.Doc(`
	Analyze the following user request, produce an execution plan and assess its risk.

	User request: %s

	Respond with a JSON object in the following format (do not wrap it in markdown code fences):
	{
	    "analysis": "your understanding and analysis of the request",
	    "action_type": "operation type (e.g. query_info, modify_data, delete_data, send_message, make_payment)",
	    "description": "concrete description of the operation to perform",
	    "risk_level": "risk level (low/medium/high/critical)",
	    "parameters": {},
	    "reason": "why this operation should be performed",
	    "requires_approval": true/false
	}

	Risk levels:
	- low: read-only query, no side effects
	- medium: data modification, reversible
	- high: data deletion, external API calls, sending messages
	- critical: payments, bulk operations, irreversible operations

	Examples:
	- "check the weather" -> low, requires_approval: false
	- "change my username" -> medium, requires_approval: false
	- "delete my account" -> critical, requires_approval: true
	- "send a notification to all users" -> critical, requires_approval: true
`)
