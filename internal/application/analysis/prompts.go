package analysis

import "fmt"

// Prompts for the completion calls. The provider is asked for raw JSON so
// responses can be decoded straight into the document types; fence
// stripping in parse.go covers models that wrap output anyway.

const personaHeader = `You are a senior construction bid analyst reviewing a French tender dossier (DCE).`

const generalInfoSchema = `{
  "project_info": {
    "name": "...", "client": "...", "client_type": "...", "location": "...",
    "postal_code": "...", "project_type": "...", "usage": "...",
    "total_surface_m2": null, "budget_ht": null, "price_per_sqm": null,
    "duration_months": null, "start_date": "...", "deadline_submission": "...",
    "moe": "...", "structure_type": "...", "market_type": "..."
  },
  "technical_constraints": {},
  "requirements": [],
  "evaluation_criteria": {},
  "suspended_opinions": [],
  "risks": [],
  "key_dates": {},
  "documents_provided": [],
  "strategic_analysis": {}
}`

// GeneralInfoPrompt asks for the general project information only; lots
// are analyzed by their own calls.
func GeneralInfoPrompt(text string) string {
	return fmt.Sprintf(`%s

Extract ONLY the GENERAL information from this tender: project identity,
global budget, planning and key dates, technical constraints, eliminatory
requirements, evaluation criteria weighting, pending review opinions and
risks. Do NOT detail the works packages (lots); they are analyzed
separately; at most mention how many there are.

Respond with raw JSON only (no code fences), using this structure and null
for anything the dossier does not state:

%s

Tender text:
%s`, personaHeader, generalInfoSchema, text)
}

// LotPrompt asks for the detailed analysis of a single works package.
func LotPrompt(num, name, excerpt string) string {
	return fmt.Sprintf(`%s

Analyze works package LOT %s - %s of this tender.

Write a detailed description (overview of the works, technical content,
key execution points), list every material mentioned with brand or
reference when available, collect the applicable specifications and
standards, and report the estimated amount if a price schedule states one.

Respond with raw JSON only (no code fences):

{
  "number": "%s",
  "name": "%s",
  "description": "...",
  "estimated_amount": null,
  "materials": [],
  "specifications": "..."
}

Use only facts from the text; put null where information is missing.

Lot text:
%s`, personaHeader, num, name, num, name, excerpt)
}

// FullAnalysisPrompt covers the whole dossier in one call, for inputs
// short enough to fit the provider's context.
func FullAnalysisPrompt(text string) string {
	return fmt.Sprintf(`%s

Produce the complete analysis of this tender in one pass: the general
information AND every works package (lot) you can identify.

Respond with raw JSON only (no code fences). Use the general structure
below, plus a "lots" array where each entry has number, name, description,
estimated_amount, materials and specifications:

%s

Use null for anything the dossier does not state; never invent values.

Tender text:
%s`, personaHeader, generalInfoSchema, text)
}
