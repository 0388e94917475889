package prompt

// CreateExample is the answer template appended to creation prompts.
const CreateExample = `JSON example
{"title":"Tokyo 2 nights 3 days","days":[` +
	`{"day":1,"date":"2025-05-12","title":"Day 1: arrival and Shinjuku","schedules":[` +
	`{"id":"1-0","name":"Narita International Airport","time":"14:00","lat":35.771987,"lng":140.392903,"category":"attraction","duration":"0.5h","notes":"Arrival and immigration","cost":"0","address":"1-1 Furugome, Narita, Chiba"},` +
	`{"id":"1-1","name":"Shinjuku Gyoen","time":"16:00","lat":35.685175,"lng":139.710052,"category":"attraction","duration":"1.5h","notes":"Garden walk","cost":"500","address":"11 Naitomachi, Shinjuku City, Tokyo"},` +
	`{"id":"1-2","name":"Omoide Yokocho","time":"18:00","lat":35.693600,"lng":139.699800,"category":"meal","duration":"1h","notes":"Yakitori alley","cost":"3000","address":"1-2 Nishishinjuku, Shinjuku City, Tokyo"}]},` +
	`{"day":2,"date":"2025-05-13","title":"Day 2: east Tokyo","schedules":[` +
	`{"id":"2-1","name":"Tokyo Tower","time":"10:00","lat":35.6585805,"lng":139.7454329,"category":"attraction","duration":"1h","notes":"City view","cost":"1200","address":"4-2-8 Shibakoen, Minato City, Tokyo"}]},` +
	`{"day":3,"date":"2025-05-14","title":"Day 3: departure","schedules":[` +
	`{"id":"3-1","name":"Narita International Airport","time":"16:00","lat":35.771987,"lng":140.392903,"category":"attraction","duration":"2h","notes":"Departure procedures","cost":"0","address":"1-1 Furugome, Narita, Chiba"}]}]}
Return only this structure.`

// ModifyExample is the answer template appended to modification prompts.
const ModifyExample = `Answer format, return only this structure:
{
  "days": {
    "1": {
      "schedules": [{
        "id": "unique id",
        "name": "place name",
        "time": "HH:MM",
        "lat": 0.0,
        "lng": 0.0,
        "category": "attraction | meal",
        "duration": "duration",
        "notes": "short description",
        "cost": "cost",
        "address": "address"
      }]
    },
    "2": { "schedules": [] }
  }
}
Generate general schedules only. Do not include flights or lodging.`
