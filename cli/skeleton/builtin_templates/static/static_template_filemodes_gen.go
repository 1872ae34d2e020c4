package static

/*
This file is generated! DO NOT EDIT
*/

var StaticFileModes = map[string]int{
	"css/site.css": 420 /* 0644 */,
}
