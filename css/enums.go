package css

// Kind of a stylesheet rule as seen by rule consumers.
// ENUM(style, media, other)
type RuleKind int
