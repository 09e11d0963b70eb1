package config

// Preferred color scheme of the viewport media queries are evaluated against.
// ENUM(light, dark)
type ColorScheme int
