package model

// Pipeline is a CRM deal pipeline (a "group" in ActiveCampaign terms).
type Pipeline struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CRMGroupID int    `json:"crm_group_id"`
	SortOrder  int    `json:"sort_order"`
}

// PipelineStage is one stage within a pipeline. CRMStageID is the
// ActiveCampaign stage identifier and is unique across stages. Stages
// are seeded once and read-only during reconciliation.
type PipelineStage struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
	CRMStageID int    `json:"crm_stage_id"`
	SortOrder  int    `json:"sort_order"`
}
