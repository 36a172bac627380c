package interpreter

import "testing"

func TestExtractBlocks(t *testing.T) {
	text := "Let me look.\n```bash\nls -la\n```\nThen python:\n```Python\nprint('hi')\n```\n"
	blocks := ExtractBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Language != "bash" || blocks[0].Code != "ls -la" {
		t.Fatalf("unexpected first block: %+v", blocks[0])
	}
	if blocks[1].Language != "python" || blocks[1].Code != "print('hi')" {
		t.Fatalf("unexpected second block: %+v", blocks[1])
	}
}

func TestExtractBlocksSkipsEmptyAndKeepsUnterminated(t *testing.T) {
	text := "```sh\n\n```\n```sh\necho tail"
	blocks := ExtractBlocks(text)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Code != "echo tail" {
		t.Fatalf("unexpected block: %+v", blocks[0])
	}
}

func TestExtractBlocksNone(t *testing.T) {
	if blocks := ExtractBlocks("All done, 3 files listed."); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %+v", blocks)
	}
}

func TestProseOnly(t *testing.T) {
	got := proseOnly("Running:\n```sh\necho hi\n```\nthat's it")
	if got != "Running:\nthat's it" {
		t.Fatalf("unexpected prose: %q", got)
	}
}
