package static

/*
This file is generated! DO NOT EDIT
*/

var TemplatesFileModes = map[string]int{
	"base.html":  420 /* 0644 */,
	"index.html": 420 /* 0644 */,
}
