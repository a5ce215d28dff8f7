package logx

import "testing"

// Tagged loggers must not panic for any of the spec's subsystem tags, with
// or without a file sink configured.
func Test_Tagged_all_tags_log_without_panic(t *testing.T) {
	for _, tag := range []Tag{Session, Packet, Control, TNC, System, Progress} {
		Tagged(tag).Info("example message %d", 1)
	}
}

func Test_Configure_empty_pattern_disables_file_sink(t *testing.T) {
	if err := Configure(t.TempDir(), ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	Tagged(System).Info("stderr only")
}

func Test_Configure_rotates_into_directory(t *testing.T) {
	dir := t.TempDir()
	if err := Configure(dir, "hamstr-%Y%m%d.log"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	Tagged(Packet).Info("written to rotating file")
}
