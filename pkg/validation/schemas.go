package validation

// CustomCategoriesBySectionStage is the UI staging blob keyed by
// "<sectionID>:<stage>" holding ordered custom category stubs.
var CustomCategoriesBySectionStage = MustCompile("custom_categories_by_section_stage.json", `{
	"type": "object",
	"additionalProperties": {
		"type": "array",
		"items": {
			"type": "object",
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 1}
			},
			"required": ["id", "name"]
		}
	}
}`)

// ExplicitlyActivatedStageIDs is the list of stage keys the user opened.
var ExplicitlyActivatedStageIDs = MustCompile("explicitly_activated_stage_ids.json", `{
	"type": "array",
	"items": {"type": "string", "minLength": 1},
	"uniqueItems": true
}`)

// CalendarResult validates results published by the calendar worker.
var CalendarResult = MustCompile("calendar_result.json", `{
	"type": "object",
	"properties": {
		"command_id": {"type": "string", "minLength": 1},
		"type": {"enum": ["sync_task", "delete_event"]},
		"task_id": {"type": "string"},
		"status": {"enum": ["COMPLETED", "FAILED"]},
		"google_event_id": {"type": "string"},
		"google_calendar_id": {"type": "string"},
		"error": {"type": "string"}
	},
	"required": ["command_id", "type", "status"]
}`)
