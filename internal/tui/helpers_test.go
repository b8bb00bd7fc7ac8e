package tui

import "storytree/internal/content"

func contentOf(s string) content.Delta { return content.New(s) }
