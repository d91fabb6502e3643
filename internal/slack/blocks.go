package slack

import "encoding/json"

// Block 种类
const (
	BlockSection = "section"
	BlockDivider = "divider"
	BlockContext = "context"
	BlockActions = "actions"
	BlockInput   = "input"
)

// TextObject Block Kit 文本对象
type TextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func PlainText(text string) *TextObject {
	return &TextObject{Type: "plain_text", Text: text, Emoji: true}
}

func MrkdwnText(text string) *TextObject {
	return &TextObject{Type: "mrkdwn", Text: text}
}

// BlockElement 块内元素：按钮、频道选择、图片、文本等。
// text 字段在按钮里是文本对象，在 context 文本元素里是裸字符串，保持 interface{}
type BlockElement struct {
	Type        string      `json:"type"`
	ActionID    string      `json:"action_id,omitempty"`
	Text        interface{} `json:"text,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	AltText     string      `json:"alt_text,omitempty"`
	Multiline   bool        `json:"multiline,omitempty"`
	Placeholder *TextObject `json:"placeholder,omitempty"`
}

func NewButton(label, actionID string) BlockElement {
	return BlockElement{Type: "button", ActionID: actionID, Text: PlainText(label)}
}

func NewChannelSelect(placeholder, actionID string) BlockElement {
	return BlockElement{Type: "channels_select", ActionID: actionID, Placeholder: PlainText(placeholder)}
}

func NewImageElement(url, alt string) BlockElement {
	return BlockElement{Type: "image", ImageURL: url, AltText: alt}
}

func NewTextElement(text string) BlockElement {
	return BlockElement{Type: "plain_text", Text: text}
}

func NewMrkdwnElement(text string) BlockElement {
	return BlockElement{Type: "mrkdwn", Text: text}
}

// Block Block Kit 布局块
type Block struct {
	Type      string         `json:"type"`
	BlockID   string         `json:"block_id,omitempty"`
	Text      *TextObject    `json:"text,omitempty"`
	Label     *TextObject    `json:"label,omitempty"`
	Element   *BlockElement  `json:"element,omitempty"`
	Accessory *BlockElement  `json:"accessory,omitempty"`
	Elements  []BlockElement `json:"elements,omitempty"`
}

func NewSection(text *TextObject) Block {
	return Block{Type: BlockSection, Text: text}
}

func NewSectionWithAccessory(text *TextObject, accessory BlockElement) Block {
	return Block{Type: BlockSection, Text: text, Accessory: &accessory}
}

func NewDivider() Block {
	return Block{Type: BlockDivider}
}

func NewContext(elements []BlockElement) Block {
	return Block{Type: BlockContext, Elements: elements}
}

func NewActions(elements ...BlockElement) Block {
	return Block{Type: BlockActions, Elements: elements}
}

// NewTextInput 单行文本输入块，block_id 与内部元素的 action_id 相同
func NewTextInput(label, blockID, placeholder string) Block {
	element := BlockElement{Type: "plain_text_input", ActionID: blockID}
	if placeholder != "" {
		element.Placeholder = PlainText(placeholder)
	}
	return Block{Type: BlockInput, BlockID: blockID, Label: PlainText(label), Element: &element}
}

// NewMultilineInput 多行文本输入块
func NewMultilineInput(label, blockID string) Block {
	element := BlockElement{Type: "plain_text_input", ActionID: blockID, Multiline: true}
	return Block{Type: BlockInput, BlockID: blockID, Label: PlainText(label), Element: &element}
}

// ViewState 视图提交时各输入块的取值，blockID -> actionID -> value
type ViewState struct {
	Values map[string]map[string]InputValue `json:"values"`
}

type InputValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// View 模态视图，入站提交与出站渲染共用一个结构
type View struct {
	ID         string      `json:"id,omitempty"`
	Type       string      `json:"type,omitempty"`
	CallbackID string      `json:"callback_id,omitempty"`
	Title      *TextObject `json:"title,omitempty"`
	Submit     *TextObject `json:"submit,omitempty"`
	Blocks     []Block     `json:"blocks"`
	State      *ViewState  `json:"state,omitempty"`
}

// NewModal 构造一个带回调ID的模态视图
func NewModal(callbackID, title string, blocks []Block) *View {
	return &View{
		Type:       "modal",
		CallbackID: callbackID,
		Title:      PlainText(title),
		Blocks:     blocks,
	}
}

// WithSubmit 设置提交按钮文案
func (v *View) WithSubmit(label string) *View {
	v.Submit = PlainText(label)
	return v
}

// InputBlockCount 统计视图内 input 块数量，块组序号由它推出
func (v *View) InputBlockCount() int {
	count := 0
	for _, block := range v.Blocks {
		if block.Type == BlockInput {
			count++
		}
	}
	return count
}

// InputBlocks 按出现顺序返回视图内全部 input 块
func (v *View) InputBlocks() []Block {
	var inputs []Block
	for _, block := range v.Blocks {
		if block.Type == BlockInput {
			inputs = append(inputs, block)
		}
	}
	return inputs
}

// InputValue 取某个输入块提交的文本值
func (v *View) InputValue(blockID string) string {
	if v.State == nil {
		return ""
	}
	actions, ok := v.State.Values[blockID]
	if !ok {
		return ""
	}
	if value, ok := actions[blockID]; ok {
		return value.Value
	}
	// block_id 与 action_id 不一致时退回取第一个值
	for _, value := range actions {
		return value.Value
	}
	return ""
}

// InsertBlocksBefore 在倒数第 tail 个块之前插入若干块
func (v *View) InsertBlocksBefore(tail int, blocks ...Block) {
	position := len(v.Blocks) - tail
	if position < 0 {
		position = 0
	}
	updated := make([]Block, 0, len(v.Blocks)+len(blocks))
	updated = append(updated, v.Blocks[:position]...)
	updated = append(updated, blocks...)
	updated = append(updated, v.Blocks[position:]...)
	v.Blocks = updated
}

// Dialog 旧版对话框，打分界面使用
type Dialog struct {
	CallbackID  string          `json:"callback_id"`
	Title       string          `json:"title"`
	SubmitLabel string          `json:"submit_label"`
	Elements    []DialogElement `json:"elements"`
}

type DialogElement struct {
	Type    string         `json:"type"`
	Label   string         `json:"label"`
	Name    string         `json:"name"`
	Options []DialogOption `json:"options,omitempty"`
}

type DialogOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NewSelectElement 构造带固定选项的下拉选择元素
func NewSelectElement(label, name string, options []string) DialogElement {
	element := DialogElement{Type: "select", Label: label, Name: name}
	for _, option := range options {
		element.Options = append(element.Options, DialogOption{Label: option, Value: option})
	}
	return element
}

// MarshalBlocks 序列化块列表，渲染测试使用
func MarshalBlocks(blocks []Block) (string, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
