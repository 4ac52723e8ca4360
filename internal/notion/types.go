package notion

// Wire types for the subset of the Notion API this tool consumes. Properties
// and blocks are polymorphic on a "type" tag; each variant's payload sits
// under a key named after the tag, so the structs below carry one optional
// pointer per supported variant and consumers switch on Type.

// Page is one row of the remote database.
type Page struct {
	ID             string              `json:"id"`
	CreatedTime    string              `json:"created_time"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]Property `json:"properties"`
}

// Property is a single page property value.
type Property struct {
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
	UniqueID    *UniqueID      `json:"unique_id,omitempty"`
	Relation    []RelationRef  `json:"relation,omitempty"`
	Files       []FileRef      `json:"files,omitempty"`
	Rollup      *Rollup        `json:"rollup,omitempty"`
}

type SelectOption struct {
	Name string `json:"name"`
}

type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// UniqueID is the auto-incremented business identifier property. Number is a
// pointer because the property can exist with no value assigned yet.
type UniqueID struct {
	Prefix string `json:"prefix,omitempty"`
	Number *int64 `json:"number"`
}

type RelationRef struct {
	ID string `json:"id"`
}

// FileRef is one entry of a files property: hosted by the backend or external.
type FileRef struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	File     *HostedFile   `json:"file,omitempty"`
	External *ExternalFile `json:"external,omitempty"`
}

type HostedFile struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

type ExternalFile struct {
	URL string `json:"url"`
}

// Rollup aggregates property values rolled up across a relation.
type Rollup struct {
	Type  string     `json:"type"`
	Array []Property `json:"array,omitempty"`
}

// URL returns the download location of the file regardless of hosting.
func (f FileRef) URL() string {
	if f.External != nil && f.External.URL != "" {
		return f.External.URL
	}
	if f.File != nil {
		return f.File.URL
	}
	return ""
}

// RichText is one styled text run.
type RichText struct {
	PlainText   string      `json:"plain_text"`
	Href        string      `json:"href,omitempty"`
	Annotations Annotations `json:"annotations"`
}

type Annotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Underline     bool `json:"underline"`
	Strikethrough bool `json:"strikethrough"`
}

// Block is a node of a page's content tree. Children is filled in by
// FetchBlockTree, never by the wire decoder.
type Block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
	Children    []Block `json:"-"`

	Paragraph        *RichTextPayload `json:"paragraph,omitempty"`
	Heading1         *RichTextPayload `json:"heading_1,omitempty"`
	Heading2         *RichTextPayload `json:"heading_2,omitempty"`
	Heading3         *RichTextPayload `json:"heading_3,omitempty"`
	BulletedListItem *RichTextPayload `json:"bulleted_list_item,omitempty"`
	NumberedListItem *RichTextPayload `json:"numbered_list_item,omitempty"`
	Toggle           *RichTextPayload `json:"toggle,omitempty"`
	Quote            *RichTextPayload `json:"quote,omitempty"`
	Callout          *RichTextPayload `json:"callout,omitempty"`
	ToDo             *ToDoPayload     `json:"to_do,omitempty"`
	Equation         *EquationPayload `json:"equation,omitempty"`
	Code             *CodePayload     `json:"code,omitempty"`
	TableRow         *TableRowPayload `json:"table_row,omitempty"`
	Image            *MediaPayload    `json:"image,omitempty"`
	Video            *MediaPayload    `json:"video,omitempty"`
	File             *MediaPayload    `json:"file,omitempty"`
	PDF              *MediaPayload    `json:"pdf,omitempty"`
	Audio            *MediaPayload    `json:"audio,omitempty"`
	Bookmark         *LinkPayload     `json:"bookmark,omitempty"`
	Embed            *LinkPayload     `json:"embed,omitempty"`
	LinkPreview      *LinkPayload     `json:"link_preview,omitempty"`
	ChildPage        *ChildPagePayload `json:"child_page,omitempty"`
}

type RichTextPayload struct {
	RichText []RichText `json:"rich_text"`
}

type ToDoPayload struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type EquationPayload struct {
	Expression string `json:"expression"`
}

// CodePayload accepts both the current "rich_text" key and the legacy "text"
// key the older API versions used for code content.
type CodePayload struct {
	RichText []RichText `json:"rich_text"`
	Text     []RichText `json:"text"`
	Language string     `json:"language"`
}

func (p *CodePayload) runs() []RichText {
	if len(p.RichText) > 0 {
		return p.RichText
	}
	return p.Text
}

type TableRowPayload struct {
	Cells [][]RichText `json:"cells"`
}

// MediaPayload carries either an externally hosted or backend-hosted URL.
type MediaPayload struct {
	File     *HostedFile   `json:"file,omitempty"`
	External *ExternalFile `json:"external,omitempty"`
}

func (p *MediaPayload) url() string {
	if p.File != nil && p.File.URL != "" {
		return p.File.URL
	}
	if p.External != nil {
		return p.External.URL
	}
	return ""
}

type LinkPayload struct {
	URL string `json:"url"`
}

type ChildPagePayload struct {
	Title string `json:"title"`
}

// richTextRuns returns the text runs of the plain rich-text-bearing kinds,
// or nil when the block is not one of them.
func (b *Block) richTextRuns() []RichText {
	switch b.Type {
	case "paragraph":
		return payloadRuns(b.Paragraph)
	case "heading_1":
		return payloadRuns(b.Heading1)
	case "heading_2":
		return payloadRuns(b.Heading2)
	case "heading_3":
		return payloadRuns(b.Heading3)
	case "bulleted_list_item":
		return payloadRuns(b.BulletedListItem)
	case "numbered_list_item":
		return payloadRuns(b.NumberedListItem)
	case "toggle":
		return payloadRuns(b.Toggle)
	case "quote":
		return payloadRuns(b.Quote)
	case "callout":
		return payloadRuns(b.Callout)
	}
	return nil
}

func payloadRuns(p *RichTextPayload) []RichText {
	if p == nil {
		return []RichText{}
	}
	return p.RichText
}

func (b *Block) mediaPayload() *MediaPayload {
	switch b.Type {
	case "image":
		return b.Image
	case "video":
		return b.Video
	case "file":
		return b.File
	case "pdf":
		return b.PDF
	case "audio":
		return b.Audio
	}
	return nil
}

func (b *Block) linkPayload() *LinkPayload {
	switch b.Type {
	case "bookmark":
		return b.Bookmark
	case "embed":
		return b.Embed
	case "link_preview":
		return b.LinkPreview
	}
	return nil
}

// Comment is one page comment; only the text runs matter here.
type Comment struct {
	RichText []RichText `json:"rich_text"`
}
