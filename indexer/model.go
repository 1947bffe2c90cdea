package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primaryKey" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id              uint64 `gorm:"primaryKey" json:"id"`
	Author          string `json:"author"`
	Funds           uint64 `json:"funds"`
	StartEpoch      uint64 `json:"start_epoch"`
	GraceEpoch      uint64 `json:"grace_epoch"`
	HasCode         bool   `json:"has_code"`
	SubmitHeight    uint64 `json:"submit_height"`
	SettleHeight    uint64 `json:"settle_height"`
	TallyResult     string `json:"tally_result"`
	CodeAccepted    bool   `json:"code_accepted"`
	CreateTimestamp int64  `json:"create_timestamp"`
}

type ProposalVote struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Proposal uint64 `json:"proposal"`
	Voter    string `json:"voter"`
	Yay      bool   `json:"yay"`
	Height   uint64 `json:"height"`
}

type Retract struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Validator uint64 `json:"validator"`
	Address   string `json:"address"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
}
