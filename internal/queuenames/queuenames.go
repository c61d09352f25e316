package queuenames

const (
	VideoRefreshMetadata = "video_refresh_metadata"
	MailSend             = "mail_send"
	SessionSweep         = "session_sweep"
	OrphanSweep          = "orphan_sweep"
)

var Priority = []string{
	MailSend,
	VideoRefreshMetadata,
	SessionSweep,
	OrphanSweep,
}
