package domain

// ProjectCategory groups showcase projects for the portfolio filter.
type ProjectCategory string

const (
	CategoryMechatronics ProjectCategory = "Mechatronics & Robotics"
	CategorySoftware     ProjectCategory = "Software & AI Systems"
	CategoryElectronics  ProjectCategory = "Embedded Systems"
)

type Project struct {
	ID            string          `json:"id" yaml:"id"`
	Title         string          `json:"title" yaml:"title"`
	Category      ProjectCategory `json:"category" yaml:"category"`
	Description   string          `json:"description" yaml:"description"`
	Specs         []string        `json:"specs" yaml:"specs"`
	ImageURL      string          `json:"imageUrl" yaml:"imageUrl"`
	VideoURL      string          `json:"videoUrl,omitempty" yaml:"videoUrl,omitempty"`
	GalleryImages []string        `json:"galleryImages,omitempty" yaml:"galleryImages,omitempty"`
	CurrentPhase  string          `json:"currentPhase" yaml:"currentPhase"`
	PhaseDetails  []string        `json:"phaseDetails" yaml:"phaseDetails"`
}

type TechItem struct {
	ID       string `json:"id" yaml:"id"`
	Category string `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
	Details  string `json:"details" yaml:"details"`
	ImageURL string `json:"imageUrl" yaml:"imageUrl"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
}

type Innovation struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Tag          string `json:"tag" yaml:"tag"`
	Description  string `json:"description" yaml:"description"`
	BlueprintURL string `json:"blueprintUrl" yaml:"blueprintUrl"`
}
