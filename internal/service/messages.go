package service

// User-facing texts.
const (
	msgVideoLoading     = "📥 Downloading video..."
	msgVideoFailed      = "⚠️ Could not download the video. Please send another link."
	msgVideoMissing     = "⚠️ Video file not found."
	msgVideoTooLarge    = "⚠️ The video is larger than %dMB and cannot be sent."
	msgVideoCaption     = "🎬 Downloaded\n👤 %s"
	msgVideoUploadError = "⚠️ An error occurred: %s"

	msgAudioPrompt      = "🎧 If you only need the audio:"
	msgAudioButton      = "🎵 Download MP3"
	msgAudioLinkMissing = "❌ Link for the audio was not found."
	msgAudioPreparing   = "🎵 Preparing the MP3 file..."
	msgAudioFailed      = "❌ Could not download the MP3. Please try again."
	msgAudioTooLarge    = "⚠️ The MP3 is larger than %dMB and cannot be sent."
	msgAudioCaption     = "🎧 MP3 downloaded."
	msgAudioTitle       = "Downloaded audio"
	msgAudioPerformer   = "Telegram Bot"
	msgAudioUploadError = "❌ The MP3 could not be sent: %s"
)
