package domain

import "io"

// BlobUpload はブロブストレージへ渡すオブジェクト 1 件分。Body はストリームのまま流す。
type BlobUpload struct {
	Key                string
	Body               io.Reader
	ContentType        string
	ContentDisposition string
}

// BlobObject is the descriptor returned to the uploader.
type BlobObject struct {
	URL                string `json:"url"`
	DownloadURL        string `json:"downloadUrl"`
	Pathname           string `json:"pathname"`
	ContentType        string `json:"contentType"`
	ContentDisposition string `json:"contentDisposition"`
}
