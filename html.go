package vireo

import (
	"time"

	"github.com/GeertJohan/go.rice/embedded"
)

func init() {

	// define files
	file2 := &embedded.EmbeddedFile{
		Filename:    "index.html",
		FileModTime: time.Unix(1585958761, 0),

		Content: string("<html>\n  <head>\n    <title>vireo checkpoints</title>\n    <style>\n      body { white-space: pre; font-family: monospace; }\n    </style>\n  </head>\n  <body>\n    <h2>vireo checkpoints</h2>\n    <div id=\"status\"></div>\n    <div id=\"points\"></div>\n    <script src=\"status.js\"></script>\n    <script>\n      var ws = new WebSocket(\"wss://\" + location.host + \"/checkpoints/\" + network, [\"vireo-checkpoint.1\"]);\n      ws.onopen = function() {\n          onOpen(ws);\n      };\n      ws.onmessage = function(event) {\n          onMessage(JSON.parse(event.data), ws);\n      };\n    </script>\n  </body>\n</html>\n"),
	}
	file3 := &embedded.EmbeddedFile{
		Filename:    "status.js",
		FileModTime: time.Unix(1585959389, 0),

		Content: string("var network = 'mainnet';\n\nfunction onOpen(ws) {\n    ws.send(JSON.stringify({type: 'get_checkpoints'}));\n}\n\nfunction onMessage(message, ws) {\n    var body = message['body']\n\n    switch (message['type']) {\n    case 'checkpoints':\n\tvar status = document.getElementById('status');\n\tstatus.innerHTML = body['checkpoints'].length + ' checkpoints, max height ' + body['max_height'];\n\n\tvar points = document.getElementById('points');\n\tpoints.innerHTML = '';\n\tfor (i = body['checkpoints'].length - 1; i >= 0; i--) {\n\t    var point = body['checkpoints'][i];\n\t    var pointDiv = document.createElement('div');\n\t    var pointText = document.createTextNode(\n\t\t'height: ' + point['height'] + ', block ID: ' + point['block_id']\n\t    );\n\t    pointDiv.appendChild(pointText);\n\t    points.appendChild(pointDiv);\n\t}\n\tbreak;\n\n    case 'checkpoint':\n\t// a new pin was pushed; refresh the table\n\tws.send(JSON.stringify({type: 'get_checkpoints'}));\n\tbreak;\n    }\n}\n"),
	}

	// define dirs
	dir1 := &embedded.EmbeddedDir{
		Filename:   "",
		DirModTime: time.Unix(1585959389, 0),
		ChildFiles: []*embedded.EmbeddedFile{
			file2, // "index.html"
			file3, // "status.js"

		},
	}

	// link ChildDirs
	dir1.ChildDirs = []*embedded.EmbeddedDir{}

	// register embeddedBox
	embedded.RegisterEmbeddedBox(`html`, &embedded.EmbeddedBox{
		Name: `html`,
		Time: time.Unix(1585959389, 0),
		Dirs: map[string]*embedded.EmbeddedDir{
			"": dir1,
		},
		Files: map[string]*embedded.EmbeddedFile{
			"index.html": file2,
			"status.js":  file3,
		},
	})
}
