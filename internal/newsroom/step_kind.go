package newsroom

import "fmt"

// StepKind is the tagged identity of a pipeline stage. Step records carry
// the kind explicitly so the UI never has to derive a stage from the step
// name string.
type StepKind string

const (
	StepFetchHeadlines  StepKind = "fetch_headlines"
	StepUpsertRSSFeed   StepKind = "upsert_rss_feed"
	StepGenerateArticle StepKind = "generate_article"
	StepProcessImage    StepKind = "process_image"
	StepSEOPerSite      StepKind = "seo_per_site"
	StepPublish         StepKind = "publish"
)

// DisplayStage is the coarse progress stage shown by the dashboard.
type DisplayStage string

const (
	StageFetching   DisplayStage = "fetching"
	StageDrafting   DisplayStage = "drafting"
	StageImaging    DisplayStage = "imaging"
	StageSEO        DisplayStage = "seo"
	StagePublishing DisplayStage = "publishing"
)

var stageByKind = map[StepKind]DisplayStage{
	StepFetchHeadlines:  StageFetching,
	StepUpsertRSSFeed:   StageDrafting,
	StepGenerateArticle: StageDrafting,
	StepProcessImage:    StageImaging,
	StepSEOPerSite:      StageSEO,
	StepPublish:         StagePublishing,
}

// Stage returns the display stage for this kind.
func (k StepKind) Stage() DisplayStage {
	if s, ok := stageByKind[k]; ok {
		return s
	}
	return StageFetching
}

// StepName builds the stored step name for a kind. Publish steps are
// qualified with the target site slug ("publish_<slug>"); every other kind
// stores its own fixed name.
func (k StepKind) StepName(siteSlug string) string {
	if k == StepPublish {
		return fmt.Sprintf("publish_%s", siteSlug)
	}
	return string(k)
}
